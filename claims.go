package adfsmfa

import "github.com/neos-sdi/adfsmfa-sub013/session"

// Protocol-level authentication-method URIs emitted to the host on final
// success. The set is closed over the factor enum; anything unknown maps to
// [MethodNone] rather than failing.
const (
	MethodNone      = "http://schemas.microsoft.com/ws/2012/12/authmethod/none"
	MethodOTP       = "http://schemas.microsoft.com/ws/2012/12/authmethod/otp"
	MethodEmail     = "http://schemas.microsoft.com/ws/2012/12/authmethod/email"
	MethodSMS       = "http://schemas.microsoft.com/ws/2012/12/authmethod/sms"
	MethodBiometric = "http://schemas.microsoft.com/ws/2012/12/authmethod/fido"
	MethodPIN       = "http://schemas.microsoft.com/ws/2012/12/authmethod/pin"
	MethodAzure     = "http://schemas.microsoft.com/ws/2012/12/authmethod/phoneappnotification"
)

// AuthMethodURI maps a concluded factor kind to its protocol-level
// authentication-method URI. Total over the factor enum: unknown or unset
// kinds map to [MethodNone].
func AuthMethodURI(f session.Factor) string {
	switch f {
	case session.FactorOTP:
		return MethodOTP
	case session.FactorEmail:
		return MethodEmail
	case session.FactorPhone:
		return MethodSMS
	case session.FactorBiometric:
		return MethodBiometric
	case session.FactorPIN:
		return MethodPIN
	case session.FactorAzure:
		return MethodAzure
	default:
		return MethodNone
	}
}
