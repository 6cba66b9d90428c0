package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind discriminates domain failures. The value is also the public error
// code returned by the API.
type Kind string

const (
	KindInvalidExecutionDate Kind = "DATA_EXECUCAO_INVALIDA"
	KindAlreadyExecuted      Kind = "COMPRA_JA_EXECUTADA"
	KindNoActiveBasket       Kind = "CESTA_NAO_ENCONTRADA"
	KindClientNotFound       Kind = "CLIENTE_NAO_ENCONTRADO"
	KindClientInactive       Kind = "CLIENTE_JA_INATIVO"
	KindDuplicateTaxID       Kind = "CLIENTE_CPF_DUPLICADO"
	KindInvalidMonthlyValue  Kind = "VALOR_MENSAL_INVALIDO"
	KindInvalidBasketSize    Kind = "QUANTIDADE_ATIVOS_INVALIDA"
	KindInvalidPercentages   Kind = "PERCENTUAIS_INVALIDOS"
	KindInvalidInput         Kind = "DADOS_INVALIDOS"
	KindQuoteUnresolved      Kind = "COTACAO_NAO_ENCONTRADA"
	KindPublishUnavailable   Kind = "PUBLICACAO_FISCAL_INDISPONIVEL"
	KindInternal             Kind = "ERRO_INTERNO"
)

// Error is a domain failure with its HTTP status.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Status: status, Err: cause}
}

func invalidExecutionDate() error {
	return newError(KindInvalidExecutionDate, http.StatusBadRequest,
		"A compra programada so pode ser executada na data util correspondente aos dias 5, 15 e 25.", nil)
}

func alreadyExecuted() error {
	return newError(KindAlreadyExecuted, http.StatusConflict, "Compra ja foi executada para esta data.", nil)
}

func noActiveBasket() error {
	return newError(KindNoActiveBasket, http.StatusNotFound, "Nenhuma cesta ativa encontrada.", nil)
}

func clientNotFound() error {
	return newError(KindClientNotFound, http.StatusNotFound, "Cliente nao encontrado.", nil)
}

func clientInactive() error {
	return newError(KindClientInactive, http.StatusConflict, "Cliente ja havia saido do produto.", nil)
}

func duplicateTaxID() error {
	return newError(KindDuplicateTaxID, http.StatusConflict, "CPF ja cadastrado no sistema.", nil)
}

func invalidMonthlyValue() error {
	return newError(KindInvalidMonthlyValue, http.StatusBadRequest, "O valor mensal minimo e de R$ 100,00.", nil)
}

func invalidInput(message string) error {
	return newError(KindInvalidInput, http.StatusBadRequest, message, nil)
}

func quoteUnresolved(cause error) error {
	return newError(KindQuoteUnresolved, http.StatusNotFound, "Arquivo COTAHIST nao encontrado para a data solicitada.", cause)
}

func publishUnavailable(cause error) error {
	return newError(KindPublishUnavailable, http.StatusInternalServerError, "Erro ao publicar evento fiscal.", cause)
}

func internalError(cause error) error {
	return newError(KindInternal, http.StatusInternalServerError, "Erro interno ao processar a operacao.", cause)
}

// KindOf returns the Kind of err, or "" when err is not a domain failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsBusiness reports whether err is an expected outcome rather than a fault.
func IsBusiness(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status < http.StatusInternalServerError
}
