package internaldefs

import (
	adfsmfa "github.com/neos-sdi/adfsmfa-sub013"
)

// CounterDef binds an engine counter to its published name.
type CounterDef struct {
	ID   adfsmfa.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its published name.
type HistogramDef struct {
	ID   adfsmfa.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in declaration order. Exporters
// iterate it so that output ordering stays deterministic.
var CounterDefs = []CounterDef{
	{ID: adfsmfa.MetricAttemptStarted, Name: "adfsmfa_attempt_started_total", Help: "Started authentication attempts."},
	{ID: adfsmfa.MetricChallengeIssued, Name: "adfsmfa_challenge_issued_total", Help: "Issued factor challenges."},
	{ID: adfsmfa.MetricChallengeResent, Name: "adfsmfa_challenge_resent_total", Help: "Re-issued factor challenges."},
	{ID: adfsmfa.MetricVerifySuccess, Name: "adfsmfa_verify_success_total", Help: "Successful factor verifications."},
	{ID: adfsmfa.MetricVerifyFailure, Name: "adfsmfa_verify_failure_total", Help: "Failed factor verifications."},
	{ID: adfsmfa.MetricPinRejected, Name: "adfsmfa_pin_rejected_total", Help: "Rejected in-line PIN submissions."},
	{ID: adfsmfa.MetricRetryExhausted, Name: "adfsmfa_retry_exhausted_total", Help: "Attempts locked for an exhausted retry budget."},
	{ID: adfsmfa.MetricWindowExpired, Name: "adfsmfa_window_expired_total", Help: "Attempts locked for an expired delivery window."},
	{ID: adfsmfa.MetricTerminalLock, Name: "adfsmfa_terminal_lock_total", Help: "Attempts parked on the terminal locking screen."},
	{ID: adfsmfa.MetricIdentityLockout, Name: "adfsmfa_identity_lockout_total", Help: "Attempts refused by the cross-attempt identity lockout."},
	{ID: adfsmfa.MetricEnrollmentStarted, Name: "adfsmfa_enrollment_started_total", Help: "Launched enrollment wizards."},
	{ID: adfsmfa.MetricEnrollmentCompleted, Name: "adfsmfa_enrollment_completed_total", Help: "Completed enrollment wizards."},
	{ID: adfsmfa.MetricEnrollmentCancelled, Name: "adfsmfa_enrollment_cancelled_total", Help: "Cancelled enrollment wizards."},
	{ID: adfsmfa.MetricEnrollmentRollback, Name: "adfsmfa_enrollment_rollback_total", Help: "Enrollment verifications rolled back to persisted values."},
	{ID: adfsmfa.MetricForcedEnrollment, Name: "adfsmfa_forced_enrollment_total", Help: "Forced-enrollment detours after a verified login."},
	{ID: adfsmfa.MetricCredentialRemoved, Name: "adfsmfa_credential_removed_total", Help: "Removed biometric credentials."},
	{ID: adfsmfa.MetricCredentialRemoveRejected, Name: "adfsmfa_credential_remove_rejected_total", Help: "Credential removals refused to protect the last required credential."},
	{ID: adfsmfa.MetricActivation, Name: "adfsmfa_activation_total", Help: "Re-activated registrations."},
	{ID: adfsmfa.MetricOptionsSaved, Name: "adfsmfa_options_saved_total", Help: "Saved self-management option changes."},
	{ID: adfsmfa.MetricPasswordChangeSuccess, Name: "adfsmfa_password_change_success_total", Help: "Successful password changes."},
	{ID: adfsmfa.MetricPasswordChangeFailure, Name: "adfsmfa_password_change_failure_total", Help: "Rejected password changes."},
	{ID: adfsmfa.MetricAdminRequestSent, Name: "adfsmfa_admin_request_sent_total", Help: "Administrative enrollment requests sent."},
	{ID: adfsmfa.MetricKeyRequestSent, Name: "adfsmfa_key_request_sent_total", Help: "Administrative key regeneration requests sent."},
	{ID: adfsmfa.MetricClaimsIssued, Name: "adfsmfa_claims_issued_total", Help: "Concluded attempts that emitted claims."},
	{ID: adfsmfa.MetricFatalError, Name: "adfsmfa_fatal_error_total", Help: "Attempts failed by the fatal boundary."},
}

// HistogramDefs lists the engine histograms.
var HistogramDefs = []HistogramDef{
	{ID: adfsmfa.MetricAdvanceLatency, Name: "adfsmfa_advance_latency_seconds", Help: "Advance call latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's power-of-two millisecond buckets.
var HistogramBounds = []string{
	"0.001",
	"0.002",
	"0.004",
	"0.008",
	"0.016",
	"0.032",
	"0.064",
	"+Inf",
}

// HistogramBoundSuffix holds the bound spellings usable inside a metric
// name, index-aligned with HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_001",
	"0_002",
	"0_004",
	"0_008",
	"0_016",
	"0_032",
	"0_064",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus and OTel expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
