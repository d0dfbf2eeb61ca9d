package ledger

import (
	"context"
	"strings"

	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/mmdatafocus/fund_ledger/utils"
)

type registry struct {
	accounts map[string]*models.AccountProfile
	order    []string
}

func newRegistry() *registry {
	return &registry{accounts: map[string]*models.AccountProfile{}}
}

func (r *registry) get(identity string) *models.AccountProfile {
	return r.accounts[identity]
}

func (r *registry) put(p *models.AccountProfile) {
	if _, ok := r.accounts[p.Identity]; !ok {
		r.order = append(r.order, p.Identity)
	}
	r.accounts[p.Identity] = p
}

// RegisterAccount adds a new Admin, Vendor or Auditor with the default
// reputation. Admin only.
func (l *Ledger) RegisterAccount(ctx context.Context, caller Caller, input models.NewAccount) (*models.AccountProfile, error) {
	const op = "RegisterAccount"
	var out *models.AccountProfile
	err := l.mutate(ctx, op, caller, func(m *mutation) error {
		if _, err := l.authorize(op, caller, models.RoleAdmin); err != nil {
			return err
		}
		input.Identity = strings.TrimSpace(input.Identity)
		input.Name = strings.TrimSpace(input.Name)
		input.ContactEmail = strings.TrimSpace(input.ContactEmail)
		input.ContactPhone = strings.TrimSpace(input.ContactPhone)
		if err := utils.ValidateStruct(input); err != nil {
			return invalidInput(op, "%s", utils.FormatValidationErrors(err))
		}
		if !input.Role.IsValid() {
			return invalidInput(op, "unknown role %q", input.Role)
		}
		if input.ContactPhone != "" {
			phone, err := utils.NormalizePhoneNumber(input.ContactPhone, l.phoneRegion)
			if err != nil {
				return invalidInput(op, "contact phone: %v", err)
			}
			input.ContactPhone = phone
		}
		if m.account(input.Identity) != nil {
			return alreadyProcessed(op, "account %s is already registered", input.Identity)
		}

		p := &models.AccountProfile{
			Identity:        input.Identity,
			Role:            input.Role,
			Name:            input.Name,
			ContactEmail:    input.ContactEmail,
			ContactPhone:    input.ContactPhone,
			Active:          true,
			ReputationScore: models.ReputationDefault,
			BaseReputation:  models.ReputationDefault,
			RegisteredAt:    m.now,
		}
		m.putAccount(p)
		m.emit(models.EventUserRegistered, 0, p.Identity, 0, string(p.Role))
		out = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetAccountActive activates or deactivates an account. Inactive accounts
// are refused as callers and as allocation targets. Admin only; an admin
// cannot change its own status.
func (l *Ledger) SetAccountActive(ctx context.Context, caller Caller, identity string, active bool) (*models.AccountProfile, error) {
	const op = "SetAccountActive"
	var out *models.AccountProfile
	err := l.mutate(ctx, op, caller, func(m *mutation) error {
		if _, err := l.authorize(op, caller, models.RoleAdmin); err != nil {
			return err
		}
		identity = strings.TrimSpace(identity)
		if identity == caller.Identity {
			return invalidInput(op, "an admin cannot change its own status")
		}
		p := m.account(identity)
		if p == nil {
			return notFound(op, "account %s is not registered", identity)
		}
		if p.Active == active {
			return alreadyProcessed(op, "account %s already has active=%t", identity, active)
		}
		p.Active = active
		detail := "deactivated"
		if active {
			detail = "activated"
		}
		m.emit(models.EventUserStatusChanged, 0, identity, 0, detail)
		out = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
