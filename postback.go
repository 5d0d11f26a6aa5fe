package adfsmfa

import (
	"strings"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

// Postback field names. The host submits a flat string-keyed map; each
// state parses only the fields it expects and fails closed (treats the
// postback as "not confirmed") when a required key is absent.
const (
	fieldAction       = "action"
	fieldMethod       = "method"
	fieldRemember     = "remember"
	fieldCode         = "code"
	fieldPIN          = "pin"
	fieldResponse     = "response"
	fieldValue        = "value"
	fieldConfirm      = "confirm"
	fieldCredentialID = "credential_id"
	fieldOldPassword  = "old_password"
	fieldNewPassword  = "new_password"
)

func fieldString(fields map[string]string, key string) string {
	if fields == nil {
		return ""
	}
	return strings.TrimSpace(fields[key])
}

// choosePayload is the typed input of the choose-method screen.
type choosePayload struct {
	Factor   session.Factor
	ChoiceOK bool
	Remember bool
}

func parseChoose(fields map[string]string) choosePayload {
	f, ok := session.ParseFactor(fieldString(fields, fieldMethod))
	return choosePayload{
		Factor:   f,
		ChoiceOK: ok,
		Remember: fieldString(fields, fieldRemember) == "1",
	}
}

// challengePayload is the typed input of the send-auth-request and
// identification screens.
type challengePayload struct {
	Action   string
	Code     string
	PIN      string
	Response string
}

func parseChallenge(fields map[string]string) challengePayload {
	return challengePayload{
		Action:   fieldString(fields, fieldAction),
		Code:     fieldString(fields, fieldCode),
		PIN:      fieldString(fields, fieldPIN),
		Response: fieldString(fields, fieldResponse),
	}
}

// wizardPayload is the typed input of every enrollment wizard screen.
type wizardPayload struct {
	Action       string
	Value        string
	Confirm      string
	Code         string
	Response     string
	CredentialID string
}

func parseWizard(fields map[string]string) wizardPayload {
	return wizardPayload{
		Action:       fieldString(fields, fieldAction),
		Value:        fieldString(fields, fieldValue),
		Confirm:      fieldString(fields, fieldConfirm),
		Code:         fieldString(fields, fieldCode),
		Response:     fieldString(fields, fieldResponse),
		CredentialID: fieldString(fields, fieldCredentialID),
	}
}

// shellPayload is the typed input of the registration/invitation shells.
type shellPayload struct {
	Action string
	Factor session.Factor
	// FactorOK distinguishes "no factor named" from an unknown name; both
	// fail closed but routing differs per action.
	FactorOK bool
}

func parseShell(fields map[string]string) shellPayload {
	f, ok := session.ParseFactor(fieldString(fields, fieldMethod))
	return shellPayload{
		Action:   fieldString(fields, fieldAction),
		Factor:   f,
		FactorOK: ok,
	}
}

// managePayload is the typed input of the options screens.
type managePayload struct {
	Action   string
	Factor   session.Factor
	FactorOK bool
}

func parseManage(fields map[string]string) managePayload {
	f, ok := session.ParseFactor(fieldString(fields, fieldMethod))
	return managePayload{
		Action:   fieldString(fields, fieldAction),
		Factor:   f,
		FactorOK: ok,
	}
}

// passwordPayload is the typed input of the change-password screen.
type passwordPayload struct {
	Old     string
	New     string
	Confirm string
}

func parsePassword(fields map[string]string) passwordPayload {
	return passwordPayload{
		Old:     fieldString(fields, fieldOldPassword),
		New:     fieldString(fields, fieldNewPassword),
		Confirm: fieldString(fields, fieldConfirm),
	}
}

func parseAction(fields map[string]string) string {
	return fieldString(fields, fieldAction)
}
