package offramp

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/cache"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// fiatTZS gets special settlement handling: the processor's bank rail in
// Tanzania is unreliable, so bank-type institutions are withheld there.
const fiatTZS = "TZS"

// Resolver answers rate and eligibility questions: what the conversion rate
// is, which currencies settle, and which institutions a currency can settle
// into. Institution and currency lists are cached; rates never are.
type Resolver struct {
	processor Processor
	cache     cache.RedisClient
	cacheTTL  time.Duration
	logger    *logger.Logger
}

// NewResolver creates a resolver. cacheClient may be nil, in which case
// every lookup goes to the processor.
func NewResolver(processor Processor, cacheClient cache.RedisClient, cacheTTL time.Duration, logger *logger.Logger) *Resolver {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Resolver{
		processor: processor,
		cache:     cacheClient,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// FetchRate quotes the current conversion rate for the session's form
// state. Rates are quoted fresh on every call; a cached rate could misprice
// the order.
func (r *Resolver) FetchRate(ctx context.Context, token entities.Token, amount decimal.Decimal, fiat string, chain entities.Chain) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}
	rate, err := r.processor.FetchRate(ctx, token, amount, fiat, chain.NetworkSlug())
	if err != nil {
		return decimal.Zero, err
	}
	if rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("processor returned non-positive rate %s", rate)
	}
	return rate, nil
}

// UnitRate quotes the conversion rate for a single token unit. Balance
// displays use it to price holdings in the merchant's settlement currency.
func (r *Resolver) UnitRate(ctx context.Context, token entities.Token, fiat string, chain entities.Chain) (decimal.Decimal, error) {
	return r.FetchRate(ctx, token, decimal.NewFromInt(1), fiat, chain)
}

// Currencies lists the fiat currencies available for settlement.
func (r *Resolver) Currencies(ctx context.Context) ([]entities.Currency, error) {
	const cacheKey = "offramp:currencies"

	if r.cache != nil {
		var cached []entities.Currency
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	currencies, err := r.processor.SupportedCurrencies(ctx)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, currencies, r.cacheTTL); err != nil {
			r.logger.Warn("Failed to cache currency list", "error", err.Error())
		}
	}
	return currencies, nil
}

// Institutions lists the settlement institutions for a fiat currency, with
// jurisdiction filters applied. For TZS, bank-type institutions are
// excluded; mobile-money providers remain.
func (r *Resolver) Institutions(ctx context.Context, fiat string) ([]entities.Institution, error) {
	cacheKey := "offramp:institutions:" + fiat

	if r.cache != nil {
		var cached []entities.Institution
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	institutions, err := r.processor.SupportedInstitutions(ctx, fiat)
	if err != nil {
		return nil, err
	}

	filtered := filterInstitutions(fiat, institutions)

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, filtered, r.cacheTTL); err != nil {
			r.logger.Warn("Failed to cache institution list", "fiat", fiat, "error", err.Error())
		}
	}
	return filtered, nil
}

func filterInstitutions(fiat string, institutions []entities.Institution) []entities.Institution {
	if fiat != fiatTZS {
		return institutions
	}
	filtered := make([]entities.Institution, 0, len(institutions))
	for _, inst := range institutions {
		if inst.Type == entities.InstitutionTypeBank {
			continue
		}
		filtered = append(filtered, inst)
	}
	return filtered
}

// VerifyAccount resolves the destination account's display name with the
// processor and returns the verification result for the session to record.
func (r *Resolver) VerifyAccount(ctx context.Context, institutionCode, accountIdentifier string) (entities.AccountVerification, error) {
	if institutionCode == "" || accountIdentifier == "" {
		return entities.AccountVerification{}, fmt.Errorf("institution and account identifier are required")
	}
	name, err := r.processor.VerifyAccount(ctx, institutionCode, accountIdentifier)
	if err != nil {
		return entities.AccountVerification{}, err
	}
	return entities.AccountVerification{Verified: true, AccountName: name}, nil
}
