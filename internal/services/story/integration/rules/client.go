// Package rules is the typed client for the rules service. Lookups are
// retried on transient failure; dice rolls are sent exactly once.
package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/louisbranch/fulcrum/internal/core/dice"
	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/httpjson"
)

// RetryPolicy bounds lookup retries.
type RetryPolicy struct {
	Attempts   uint
	Initial    time.Duration
	Multiplier float64
}

// DefaultRetryPolicy retries three times at roughly 100ms, 300ms and 900ms.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Initial: 100 * time.Millisecond, Multiplier: 3}

// Client calls the rules service.
type Client struct {
	http  *httpjson.Client
	retry RetryPolicy
}

// New builds a client for the rules service at baseURL.
func New(baseURL string, opts ...httpjson.Option) (*Client, error) {
	hc, err := httpjson.New("rules", baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, retry: DefaultRetryPolicy}, nil
}

// WithRetryPolicy returns a copy of c using policy for lookups.
func (c *Client) WithRetryPolicy(policy RetryPolicy) *Client {
	clone := *c
	if policy.Attempts == 0 {
		policy.Attempts = 1
	}
	clone.retry = policy
	return &clone
}

// RollInitiative rolls initiative from the six initiative stats.
func (c *Client) RollInitiative(ctx context.Context, req InitiativeRequest) (InitiativeResult, error) {
	var out InitiativeResult
	if err := c.http.Post(ctx, "/v1/roll/initiative", req, &out); err != nil {
		return InitiativeResult{}, fmt.Errorf("roll initiative: %w", err)
	}
	return out, nil
}

// InitiativeFor builds an initiative request from an actor's stats.
func InitiativeFor(actor domain.ActorContext) InitiativeRequest {
	return InitiativeRequest{
		Endurance: actor.Stat(domain.StatEndurance),
		Reflexes:  actor.Stat(domain.StatReflexes),
		Fortitude: actor.Stat(domain.StatFortitude),
		Logic:     actor.Stat(domain.StatLogic),
		Intuition: actor.Stat(domain.StatIntuition),
		Willpower: actor.Stat(domain.StatWillpower),
	}
}

// ContestedAttack rolls a contested attack.
func (c *Client) ContestedAttack(ctx context.Context, req ContestRequest) (ContestResult, error) {
	var out ContestResult
	if err := c.http.Post(ctx, "/v1/roll/contested_attack", req, &out); err != nil {
		return ContestResult{}, fmt.Errorf("contested attack: %w", err)
	}
	if !out.Outcome.Valid() {
		return ContestResult{}, apperrors.Newf(apperrors.CodeRulesRecordInvalid, "contested attack returned unknown outcome %q", out.Outcome)
	}
	return out, nil
}

// CalculateDamage computes one single-term damage roll.
func (c *Client) CalculateDamage(ctx context.Context, req DamageRequest) (DamageResult, error) {
	var out DamageResult
	if err := c.http.Post(ctx, "/v1/calculate/damage", req, &out); err != nil {
		return DamageResult{}, fmt.Errorf("calculate damage: %w", err)
	}
	return out, nil
}

// CalculateWeaponDamage expands req.Dice into its hits ("1d4+1d4",
// "1d6(x2)"), rolls each independently and sums the final damage.
func (c *Client) CalculateWeaponDamage(ctx context.Context, req DamageRequest) (WeaponDamage, error) {
	hits, err := dice.ParseDamage(req.Dice)
	if err != nil {
		return WeaponDamage{}, apperrors.Wrap(apperrors.CodeDiceInvalidSpec, "parse weapon damage", err)
	}
	out := WeaponDamage{Hits: make([]DamageResult, 0, len(hits))}
	for _, hit := range hits {
		single := req
		single.Dice = hit.String()
		res, err := c.CalculateDamage(ctx, single)
		if err != nil {
			return out, err
		}
		out.Hits = append(out.Hits, res)
		out.Final += res.Final
	}
	return out, nil
}

// LookupWeapon fetches a weapon category of the given kind.
func (c *Client) LookupWeapon(ctx context.Context, category string, kind domain.WeaponKind) (Weapon, error) {
	route := "melee_weapon"
	if kind == domain.WeaponRanged {
		route = "ranged_weapon"
	}
	path := "/v1/lookup/" + route + "/" + httpjson.PathEscape(category)
	w, err := lookup[Weapon](ctx, c, path)
	if err != nil {
		return Weapon{}, fmt.Errorf("lookup %s weapon %q: %w", kind, category, err)
	}
	if strings.TrimSpace(w.Skill) == "" || strings.TrimSpace(w.SkillStat) == "" || strings.TrimSpace(w.DamageDice) == "" {
		return Weapon{}, apperrors.Newf(apperrors.CodeRulesRecordInvalid, "weapon %q is missing skill, skill_stat or damage_dice", category)
	}
	if w.Penalty > 0 {
		return Weapon{}, apperrors.Newf(apperrors.CodeRulesRecordInvalid, "weapon %q has positive penalty %d", category, w.Penalty)
	}
	return w, nil
}

// LookupArmor fetches an armor category.
func (c *Client) LookupArmor(ctx context.Context, category string) (Armor, error) {
	a, err := lookup[Armor](ctx, c, "/v1/lookup/armor/"+httpjson.PathEscape(category))
	if err != nil {
		return Armor{}, fmt.Errorf("lookup armor %q: %w", category, err)
	}
	if strings.TrimSpace(a.Skill) == "" || strings.TrimSpace(a.SkillStat) == "" || a.DR < 0 {
		return Armor{}, apperrors.Newf(apperrors.CodeRulesRecordInvalid, "armor %q is structurally invalid", category)
	}
	return a, nil
}

// LookupInjury fetches the effects of an injury.
func (c *Client) LookupInjury(ctx context.Context, location, subLocation string, severity int) (Injury, error) {
	body := map[string]any{"location": location, "sub_location": subLocation, "severity": severity}
	op := func() (Injury, error) {
		var out Injury
		err := c.http.Post(ctx, "/v1/lookup/injury_effects", body, &out)
		return out, classify(err)
	}
	out, err := retry(ctx, c.retry, op)
	if err != nil {
		return Injury{}, fmt.Errorf("lookup injury %s/%s/%d: %w", location, subLocation, severity, err)
	}
	return out, nil
}

// LookupStatus fetches a status effect by name, ignoring case.
func (c *Client) LookupStatus(ctx context.Context, name string) (StatusEffect, error) {
	s, err := lookup[StatusEffect](ctx, c, "/v1/lookup/status_effect/"+httpjson.PathEscape(name))
	if err != nil {
		return StatusEffect{}, fmt.Errorf("lookup status %q: %w", name, err)
	}
	return s, nil
}

func lookup[T any](ctx context.Context, c *Client, path string) (T, error) {
	return retry(ctx, c.retry, func() (T, error) {
		var out T
		err := c.http.Get(ctx, path, &out)
		return out, classify(err)
	})
}

func retry[T any](ctx context.Context, policy RetryPolicy, op backoff.Operation[T]) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.Initial
	b.Multiplier = policy.Multiplier
	b.RandomizationFactor = 0
	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.Attempts),
	)
	if err == nil {
		return out, nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if _, ok := apperrors.As(err); !ok {
		// Context cancellation while waiting between attempts.
		err = apperrors.Wrap(apperrors.CodeUnavailable, "rules lookup interrupted", err)
	}
	return out, err
}

// classify marks everything except Unavailable as permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsKind(err, apperrors.KindUnavailable) {
		return err
	}
	return backoff.Permanent(err)
}
