package authkit

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tyemirov/instagate/internal/graphapi"
)

// Pipeline step names carried by ExchangeError.
const (
	StepCodeExchange    = "code_exchange"
	StepDebugToken      = "debug_token"
	StepLongLivedToken  = "long_lived_token"
	StepPageLookup      = "page_lookup"
	StepBusinessAccount = "business_account"
	StepProfile         = "profile"
	StepPersist         = "persist"
)

const messageAuthenticationFailed = "Authentication failed"

// ExchangeError reports which OAuth pipeline step failed.
// Err is a *graphapi.UpstreamError for every step except StepPersist.
type ExchangeError struct {
	Step string
	Err  error
}

func (exchangeErr *ExchangeError) Error() string {
	return fmt.Sprintf("auth_exchange.%s: %v", exchangeErr.Step, exchangeErr.Err)
}

func (exchangeErr *ExchangeError) Unwrap() error {
	return exchangeErr.Err
}

// Message returns the upstream message when present. Internal failures such as
// store errors are never exposed and yield a generic message.
func (exchangeErr *ExchangeError) Message() string {
	var upstream *graphapi.UpstreamError
	if errors.As(exchangeErr.Err, &upstream) && upstream.Message != "" {
		return upstream.Message
	}
	return messageAuthenticationFailed
}

func stepFailure(step string, err error) error {
	return &ExchangeError{Step: step, Err: err}
}

func stepMalformed(step string, message string) error {
	return &ExchangeError{Step: step, Err: graphapi.NewMalformedResponseError(http.StatusOK, message, nil)}
}
