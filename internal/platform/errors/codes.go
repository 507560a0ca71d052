// Package errors provides structured domain errors shared by Fulcrum services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Generic kinds
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodePrecondition   Code = "PRECONDITION"
	CodeUnavailable    Code = "UPSTREAM_UNAVAILABLE"
	CodeDataCorruption Code = "DATA_CORRUPTION"
	CodeInvalidInput   Code = "INVALID_INPUT"

	// Encounter errors
	CodeEncounterNotFound    Code = "ENCOUNTER_NOT_FOUND"
	CodeEncounterTerminal    Code = "ENCOUNTER_TERMINAL"
	CodeEncounterNotYourTurn Code = "ENCOUNTER_NOT_YOUR_TURN"
	CodeEncounterNoPlayers   Code = "ENCOUNTER_NO_PLAYERS"
	CodeEncounterNoNPCs      Code = "ENCOUNTER_NO_NPCS"
	CodeEncounterTurnOrder   Code = "ENCOUNTER_TURN_ORDER_IMMUTABLE"
	CodeEncounterTurnIndex   Code = "ENCOUNTER_TURN_INDEX_OUT_OF_RANGE"
	CodeEncounterDuplicate   Code = "ENCOUNTER_DUPLICATE_ACTOR"

	// Actor errors
	CodeActorInvalidID Code = "ACTOR_INVALID_ID"
	CodeActorNotFound  Code = "ACTOR_NOT_FOUND"
	CodeActorWrongKind Code = "ACTOR_WRONG_KIND"

	// Action errors
	CodeActionInvalid       Code = "ACTION_INVALID"
	CodeActionMissingTarget Code = "ACTION_MISSING_TARGET"

	// Dice/mechanics errors
	CodeDiceMissing        Code = "DICE_MISSING"
	CodeDiceInvalidSpec    Code = "DICE_INVALID_SPEC"
	CodeWeaponPenalty      Code = "WEAPON_PENALTY_POSITIVE"
	CodeDamageReduction    Code = "DAMAGE_REDUCTION_NEGATIVE"
	CodeInjurySeverity     Code = "INJURY_SEVERITY_OUT_OF_RANGE"
	CodeRulesRecordInvalid Code = "RULES_RECORD_INVALID"
)

// Kind groups codes into the handful of failure classes callers act on.
type Kind string

const (
	KindUnknown        Kind = "unknown"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindPrecondition   Kind = "precondition"
	KindUnavailable    Kind = "unavailable"
	KindDataCorruption Kind = "data_corruption"
	KindInvalidInput   Kind = "invalid_input"
)

// Kind maps a code onto its failure class.
func (c Code) Kind() Kind {
	switch c {
	case CodeNotFound,
		CodeEncounterNotFound,
		CodeActorNotFound:
		return KindNotFound

	case CodeConflict,
		CodeEncounterTerminal,
		CodeEncounterNotYourTurn:
		return KindConflict

	case CodePrecondition:
		return KindPrecondition

	case CodeUnavailable:
		return KindUnavailable

	case CodeDataCorruption,
		CodeRulesRecordInvalid:
		return KindDataCorruption

	case CodeInvalidInput,
		CodeEncounterNoPlayers,
		CodeEncounterNoNPCs,
		CodeEncounterTurnOrder,
		CodeEncounterTurnIndex,
		CodeEncounterDuplicate,
		CodeActorInvalidID,
		CodeActorWrongKind,
		CodeActionInvalid,
		CodeActionMissingTarget,
		CodeDiceMissing,
		CodeDiceInvalidSpec,
		CodeWeaponPenalty,
		CodeDamageReduction,
		CodeInjurySeverity:
		return KindInvalidInput

	default:
		return KindUnknown
	}
}

// HTTPStatus maps a failure class to an HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPrecondition:
		return http.StatusPreconditionFailed
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps a failure class to the combatctl process exit code.
func (k Kind) ExitCode() int {
	switch k {
	case KindNotFound:
		return 1
	case KindConflict, KindPrecondition:
		return 2
	case KindUnavailable:
		return 3
	default:
		return 4
	}
}

// KindFromHTTPStatus classifies a peer's HTTP status code.
func KindFromHTTPStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusPreconditionFailed:
		return KindPrecondition
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindInvalidInput
	case status == http.StatusTooManyRequests,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return KindUnavailable
	case status >= 500:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// CodeForKind returns the generic code used when a peer reports only a kind.
func CodeForKind(k Kind) Code {
	switch k {
	case KindNotFound:
		return CodeNotFound
	case KindConflict:
		return CodeConflict
	case KindPrecondition:
		return CodePrecondition
	case KindUnavailable:
		return CodeUnavailable
	case KindDataCorruption:
		return CodeDataCorruption
	case KindInvalidInput:
		return CodeInvalidInput
	default:
		return CodeUnknown
	}
}
