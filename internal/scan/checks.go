package scan

import (
	"strings"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/provider"
)

// CodeMissing flags a resource the provider reports as not found, when the
// scan was asked to tolerate that.
const CodeMissing = "RES_MISSING"

// Check is one deterministic drift rule: a boolean predicate over the
// provider-reported state plus a meta payload identifying the property that
// triggered it.
type Check struct {
	Code     string
	Severity api.Severity
	Failed   func(res provider.Resource) bool
	Meta     func(res provider.Resource) map[string]any
}

// Checks returns the fixed check table for a resource kind. Severities are
// code-fixed per kind, not profile-supplied.
func Checks(kind provider.Kind) []Check {
	switch kind {
	case provider.KindWebApp:
		return webAppChecks
	case provider.KindStorageAccount:
		return storageChecks
	}
	return nil
}

var webAppChecks = []Check{
	{
		Code:     "APP_TLS_MIN_BELOW_1_2",
		Severity: api.SeverityHigh,
		Failed: func(res provider.Resource) bool {
			return tlsBelow12(res.Str("minTlsVersion", "1.2"))
		},
		Meta: propMeta("minTlsVersion"),
	},
	{
		Code:     "APP_HTTPS_ONLY_DISABLED",
		Severity: api.SeverityHigh,
		Failed: func(res provider.Resource) bool {
			return !res.Bool("httpsOnly", false)
		},
		Meta: propMeta("httpsOnly"),
	},
	{
		Code:     "APP_FTPS_NOT_DISABLED",
		Severity: api.SeverityMedium,
		Failed: func(res provider.Resource) bool {
			return res.Str("ftpsState", "AllAllowed") != "Disabled"
		},
		Meta: propMeta("ftpsState"),
	},
	{
		Code:     "APP_MSI_DISABLED",
		Severity: api.SeverityMedium,
		Failed: func(res provider.Resource) bool {
			return identityType(res) == "None"
		},
		Meta: propMeta("identity"),
	},
	{
		Code:     "APP_DIAG_NO_LAW",
		Severity: api.SeverityLow,
		Failed: func(res provider.Resource) bool {
			return res.Str("workspaceId", "") == ""
		},
		Meta: propMeta("workspaceId"),
	},
	{
		Code:     "APP_SKU_FREE_TIER",
		Severity: api.SeverityInfo,
		Failed: func(res provider.Resource) bool {
			switch strings.ToLower(res.Str("sku", "")) {
			case "f1", "d1", "free", "shared":
				return true
			}
			return false
		},
		Meta: propMeta("sku"),
	},
}

var storageChecks = []Check{
	{
		Code:     "STG_TLS_MIN_BELOW_1_2",
		Severity: api.SeverityHigh,
		Failed: func(res provider.Resource) bool {
			switch res.Str("minimumTlsVersion", "TLS1_2") {
			case "TLS1_0", "TLS1_1":
				return true
			}
			return false
		},
		Meta: propMeta("minimumTlsVersion"),
	},
	{
		Code:     "STG_HTTPS_TRAFFIC_OFF",
		Severity: api.SeverityHigh,
		Failed: func(res provider.Resource) bool {
			return !res.Bool("supportsHttpsTrafficOnly", true)
		},
		Meta: propMeta("supportsHttpsTrafficOnly"),
	},
	{
		Code:     "STG_PUBLIC_NETWORK_OPEN",
		Severity: api.SeverityMedium,
		Failed: func(res provider.Resource) bool {
			return res.Str("publicNetworkAccess", "Enabled") == "Enabled"
		},
		Meta: propMeta("publicNetworkAccess"),
	},
	{
		Code:     "STG_BLOB_PUBLIC_ACCESS",
		Severity: api.SeverityMedium,
		Failed: func(res provider.Resource) bool {
			return res.Bool("allowBlobPublicAccess", false)
		},
		Meta: propMeta("allowBlobPublicAccess"),
	},
	{
		Code:     "STG_DIAG_NO_LAW",
		Severity: api.SeverityLow,
		Failed: func(res provider.Resource) bool {
			return res.Str("workspaceId", "") == ""
		},
		Meta: propMeta("workspaceId"),
	},
}

func propMeta(property string) func(res provider.Resource) map[string]any {
	return func(res provider.Resource) map[string]any {
		m := map[string]any{"property": property}
		if v, ok := res[property]; ok {
			m["value"] = v
		}
		return m
	}
}

func tlsBelow12(version string) bool {
	switch version {
	case "1.0", "1.1":
		return true
	}
	return false
}

func identityType(res provider.Resource) string {
	identity, ok := res["identity"].(map[string]any)
	if !ok {
		return "None"
	}
	t, ok := identity["type"].(string)
	if !ok || t == "" {
		return "None"
	}
	return t
}
