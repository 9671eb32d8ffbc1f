package placement

import "errors"

var (
	ErrInvalidMarket           = errors.New("invalid market")
	ErrMarketNotOpen           = errors.New("market not open")
	ErrMarketClosed            = errors.New("market closed")
	ErrInvalidOdds             = errors.New("invalid odds")
	ErrSelectionNotFound       = errors.New("selection not found")
	ErrInvalidLiabilityForBack = errors.New("liability must be zero for back orders")
	ErrLiabilityRequiredForLay = errors.New("liability required for lay orders")
	ErrAmountMismatch          = errors.New("funds do not reconcile with stake and liability")
	ErrInvalidAmount           = errors.New("funds must be positive")
	ErrOrderNotFound           = errors.New("order not found")
	ErrNotCancelable           = errors.New("order is not cancelable")
	ErrNotOwner                = errors.New("order belongs to another owner")
	ErrReserveFailed           = errors.New("wallet reserve failed")
	ErrRefundFailed            = errors.New("wallet refund failed")
)

var reasons = []struct {
	err   error
	label string
}{
	{ErrInvalidMarket, "invalid_market"},
	{ErrMarketNotOpen, "market_not_open"},
	{ErrMarketClosed, "market_closed"},
	{ErrInvalidOdds, "invalid_odds"},
	{ErrSelectionNotFound, "selection_not_found"},
	{ErrInvalidLiabilityForBack, "invalid_liability_for_back"},
	{ErrLiabilityRequiredForLay, "liability_required_for_lay"},
	{ErrAmountMismatch, "amount_mismatch"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrReserveFailed, "reserve_failed"},
}

// Reason devolve o rótulo de métrica para um erro de colocação
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "internal"
}
