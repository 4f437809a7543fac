// Package fx is the client for the FX rate provider. A Gateway exposes a
// connectivity probe and an FX quote, and reports every outcome through
// the same Envelope shape.
package fx

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope response codes.
const (
	CodeSuccess   = "00"
	CodeException = "99"
)

// Envelope success messages.
const (
	MessageProbeSuccess = "HelloWorld call successful"
	MessageQuoteSuccess = "FX Rate call successful"
)

// Operation names used in logs, metrics, spans and audit events.
const (
	OperationProbe = "probe"
	OperationQuote = "quote"
)

// Envelope is the uniform result of every gateway call. ResponseCode is
// CodeSuccess exactly when Result is non-nil.
type Envelope[T any] struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	Result          *T     `json:"result"`
}

// OK reports whether the envelope carries a result.
func (e Envelope[T]) OK() bool {
	return e.ResponseCode == CodeSuccess && e.Result != nil
}

// ProbeResponse is the hello-world payload.
type ProbeResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// QuoteRequest is the body of an FX quote call.
type QuoteRequest struct {
	AcquirerDetails         AcquirerDetails `json:"acquirerDetails"`
	RateProductCode         string          `json:"rateProductCode" validate:"required"`
	MarkupRate              string          `json:"markupRate" validate:"required"`
	DestinationCurrencyCode string          `json:"destinationCurrencyCode" validate:"required,currency_code"`
	SourceAmount            string          `json:"sourceAmount" validate:"required,numeric"`
	SourceCurrencyCode      string          `json:"sourceCurrencyCode" validate:"required,currency_code"`
}

// AcquirerDetails identifies the acquiring institution.
type AcquirerDetails struct {
	Bin        int        `json:"bin" validate:"gt=0"`
	Settlement Settlement `json:"settlement"`
}

// Settlement names the settlement currency of a quote request.
type Settlement struct {
	CurrencyCode string `json:"currencyCode" validate:"required,currency_code"`
}

// QuoteResponse is the provider's quote. Values are kept exactly as the
// provider formatted them.
type QuoteResponse struct {
	ConversionRate            ProviderString          `json:"conversionRate"`
	DestinationAmount         ProviderString          `json:"destinationAmount"`
	RateProductCode           ProviderString          `json:"rateProductCode"`
	MarkupRateApplied         ProviderString          `json:"markupRateApplied"`
	SourceAmountWithoutMarkup ProviderString          `json:"sourceAmountWithoutMarkup"`
	AcquirerDetails           AcquirerDetailsResponse `json:"acquirerDetails"`
}

// AcquirerDetailsResponse wraps the settlement block of a quote.
type AcquirerDetailsResponse struct {
	Settlement SettlementResponse `json:"settlement"`
}

// SettlementResponse is the settlement side of a quote.
type SettlementResponse struct {
	CurrencyCode   ProviderString `json:"currencyCode"`
	Amount         ProviderString `json:"amount"`
	ConversionRate ProviderString `json:"conversionRate"`
}

// ProviderString holds a provider value as text. It decodes from a JSON
// string or keeps the literal text of a JSON number, so "1.50" and 1.50
// both arrive as "1.50".
type ProviderString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *ProviderString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = ProviderString(v)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("provider value must be a string or number, got %s", data)
		}
		*s = ProviderString(data)
		return nil
	}
}

// String returns the value as sent by the provider.
func (s ProviderString) String() string {
	return string(s)
}
