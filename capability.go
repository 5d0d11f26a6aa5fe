package adfsmfa

import (
	"context"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

// factorOrder is the canonical presentation and registration-shell order.
var factorOrder = []session.Factor{
	session.FactorOTP,
	session.FactorEmail,
	session.FactorPhone,
	session.FactorBiometric,
	session.FactorAzure,
	session.FactorPIN,
}

// capability is one registry entry: a factor's policy flags joined with its
// backend. Read-only after Build.
type capability struct {
	kind    session.Factor
	cfg     FactorConfig
	backend FactorBackend
}

type capabilityRegistry struct {
	caps map[session.Factor]capability
}

func newCapabilityRegistry(cfg Config, backends map[session.Factor]FactorBackend) *capabilityRegistry {
	r := &capabilityRegistry{caps: make(map[session.Factor]capability, len(factorOrder))}
	for _, f := range factorOrder {
		fc := cfg.factorConfig(f)
		if !fc.Enabled {
			continue
		}
		r.caps[f] = capability{kind: f, cfg: fc, backend: backends[f]}
	}
	return r
}

func (r *capabilityRegistry) get(f session.Factor) (capability, bool) {
	c, ok := r.caps[f]
	return c, ok
}

func (r *capabilityRegistry) enabled(f session.Factor) bool {
	_, ok := r.caps[f]
	return ok
}

func (r *capabilityRegistry) required(f session.Factor) bool {
	c, ok := r.caps[f]
	return ok && c.cfg.Required
}

func (r *capabilityRegistry) wizardEnabled(f session.Factor) bool {
	c, ok := r.caps[f]
	return ok && c.cfg.WizardEnabled
}

func (r *capabilityRegistry) backend(f session.Factor) FactorBackend {
	c, ok := r.caps[f]
	if !ok {
		return nil
	}
	return c.backend
}

// availableFor returns, in canonical order, the enabled factors whose
// backend reports availability for this user. Factors without a backend are
// never available.
func (r *capabilityRegistry) availableFor(
	ctx context.Context,
	sc *session.Context,
	user *RegisteredUser,
) []session.Factor {
	var out []session.Factor
	for _, f := range factorOrder {
		c, ok := r.caps[f]
		if !ok || c.backend == nil {
			continue
		}
		if c.backend.IsAvailable(ctx, sc, user) {
			out = append(out, f)
		}
	}
	return out
}

// requiredFactors returns the enabled factors marked Required, in order.
func (r *capabilityRegistry) requiredFactors() []session.Factor {
	var out []session.Factor
	for _, f := range factorOrder {
		if r.required(f) {
			out = append(out, f)
		}
	}
	return out
}

// wizardFactors returns the enabled factors with wizards, in order.
func (r *capabilityRegistry) wizardFactors() []session.Factor {
	var out []session.Factor
	for _, f := range factorOrder {
		if r.wizardEnabled(f) {
			out = append(out, f)
		}
	}
	return out
}
