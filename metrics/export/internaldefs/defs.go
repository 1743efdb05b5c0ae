package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/authcore"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful password logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed password logins."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins rejected by the login throttle."},
	{ID: authcore.MetricExternalLoginSuccess, Name: "authcore_external_login_success_total", Help: "Successful external-identity logins."},
	{ID: authcore.MetricExternalLoginFailure, Name: "authcore_external_login_failure_total", Help: "Failed external-identity logins."},
	{ID: authcore.MetricPrincipalProvisioned, Name: "authcore_principal_provisioned_total", Help: "Principals created on first external login."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: authcore.MetricRegisterFailure, Name: "authcore_register_failure_total", Help: "Registrations failed for other reasons."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh-token rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh-token rotations."},
	{ID: authcore.MetricRefreshInactive, Name: "authcore_refresh_inactive_total", Help: "Rotations of already retired refresh tokens."},
	{ID: authcore.MetricRefreshTokenEvicted, Name: "authcore_refresh_token_evicted_total", Help: "Refresh tokens revoked by the per-principal limit."},
	{ID: authcore.MetricRevoke, Name: "authcore_revoke_total", Help: "Single refresh-token revocations."},
	{ID: authcore.MetricRevokeAll, Name: "authcore_revoke_all_total", Help: "Revoke-all operations."},
	{ID: authcore.MetricAccessTokenBlacklisted, Name: "authcore_access_token_blacklisted_total", Help: "Access tokens added to the blacklist."},
	{ID: authcore.MetricValidateSuccess, Name: "authcore_validate_success_total", Help: "Access tokens accepted."},
	{ID: authcore.MetricValidateRejected, Name: "authcore_validate_rejected_total", Help: "Access tokens rejected."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Sessions created."},
	{ID: authcore.MetricSessionDeactivated, Name: "authcore_session_deactivated_total", Help: "Sessions deactivated."},
	{ID: authcore.MetricPermissionChange, Name: "authcore_permission_change_total", Help: "Permission mask changes."},
	{ID: authcore.MetricPrincipalDeactivated, Name: "authcore_principal_deactivated_total", Help: "Principal deactivations."},
	{ID: authcore.MetricCleanupRemoved, Name: "authcore_cleanup_removed_total", Help: "Entries removed by cleanup sweeps."},
	{ID: authcore.MetricCleanupFailure, Name: "authcore_cleanup_failure_total", Help: "Cleanup passes with at least one failed sweep."},
	{ID: authcore.MetricStoreFailure, Name: "authcore_store_failure_total", Help: "Operations failed by a backing store."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Validate latency histogram."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const (
	AuditDroppedName = "authcore_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// BucketCount is the number of latency buckets including +Inf.
const BucketCount = len(authcore.HistogramBoundsMillis) + 1

// UpperBoundsSeconds returns the finite bucket bounds in seconds.
func UpperBoundsSeconds() []float64 {
	out := make([]float64, len(authcore.HistogramBoundsMillis))
	for i, ms := range authcore.HistogramBoundsMillis {
		out[i] = float64(ms) / 1000
	}
	return out
}

// BoundSuffixes returns instrument-name suffixes per bucket, for example
// "0_005" and "inf".
func BoundSuffixes() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range UpperBoundsSeconds() {
		out = append(out, strings.ReplaceAll(strconv.FormatFloat(b, 'f', -1, 64), ".", "_"))
	}
	return append(out, "inf")
}

// NormalizeBuckets copies raw into a fixed-width array, padding with zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
