package retention

import "maps"

const (
	StandardSOX    = "SOX"
	StandardGDPR   = "GDPR"
	StandardPCIDSS = "PCI_DSS"
)

var complianceRequirements = map[string]ComplianceRequirement{
	StandardSOX: {
		Description:         "Sarbanes-Oxley Act",
		RetentionPeriodDays: 2555,
		Requirements: []string{
			"Financial transaction records",
			"Access control changes",
			"System configuration changes",
			"Administrative actions",
		},
	},
	StandardGDPR: {
		Description:         "General Data Protection Regulation",
		RetentionPeriodDays: 2190,
		Requirements: []string{
			"Personal data access logs",
			"Data export and deletion requests",
			"Consent changes",
			"Profile updates",
		},
	},
	StandardPCIDSS: {
		Description:         "Payment Card Industry Data Security Standard",
		RetentionPeriodDays: 365,
		Requirements: []string{
			"Cardholder data access",
			"Authentication events",
			"Security alerts",
			"Payment transactions",
		},
	},
}

// ComplianceRequirements returns a copy of the regulatory retention table.
func ComplianceRequirements() map[string]ComplianceRequirement {
	out := maps.Clone(complianceRequirements)
	for k, v := range out {
		v.Requirements = append([]string(nil), v.Requirements...)
		out[k] = v
	}
	return out
}
