package ride

import (
	"encoding/json"
	"fmt"

	"github.com/codeBaron-dev/Rider/internal/models"
)

// Intent is an input event for the Machine. The set is closed: only the
// types in this file implement it.
type Intent interface {
	message
	isIntent()
}

// message is anything the consumer goroutine reads off the queue, either a
// public Intent or one of the machine's internal commands.
type message interface {
	name() string
}

type PermissionActionClick struct{}

type LocationReceived struct {
	Location models.LocationRecord `json:"location"`
}

// LocationError carries a display message. Kind classifies the failure and
// defaults to Unknown.
type LocationError struct {
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message"`
}

type GetAllSavedLocation struct{}

type SendEta struct {
	Minutes int `json:"minutes"`
}

type SendFare struct {
	Amount float64 `json:"amount"`
}

type SendArrival struct {
	Arrived bool          `json:"arrived"`
	Driver  models.Driver `json:"driver"`
}

func (PermissionActionClick) isIntent() {}
func (LocationReceived) isIntent()      {}
func (LocationError) isIntent()         {}
func (GetAllSavedLocation) isIntent()   {}
func (SendEta) isIntent()               {}
func (SendFare) isIntent()              {}
func (SendArrival) isIntent()           {}

func (PermissionActionClick) name() string { return "permission_action_click" }
func (LocationReceived) name() string      { return "location_received" }
func (LocationError) name() string         { return "location_error" }
func (GetAllSavedLocation) name() string   { return "get_all_saved_location" }
func (SendEta) name() string               { return "send_eta" }
func (SendFare) name() string              { return "send_fare" }
func (SendArrival) name() string           { return "send_arrival" }

// IntentName returns the wire name of i, as accepted by DecodeIntent.
func IntentName(i Intent) string { return i.name() }

// DecodeIntent parses a JSON envelope of the form {"type": "...", ...} into
// the matching Intent.
func DecodeIntent(data []byte) (Intent, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}

	var (
		i   Intent
		err error
	)
	switch env.Type {
	case "permission_action_click":
		i = PermissionActionClick{}
	case "get_all_saved_location":
		i = GetAllSavedLocation{}
	case "location_received":
		var v LocationReceived
		err = json.Unmarshal(data, &v)
		if err == nil {
			err = v.Location.Loc.Validate()
		}
		i = v
	case "location_error":
		var v LocationError
		err = json.Unmarshal(data, &v)
		if v.Kind == "" {
			v.Kind = Unknown
		}
		i = v
	case "send_eta":
		var v SendEta
		err = json.Unmarshal(data, &v)
		i = v
	case "send_fare":
		var v SendFare
		err = json.Unmarshal(data, &v)
		i = v
	case "send_arrival":
		var v SendArrival
		err = json.Unmarshal(data, &v)
		i = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return i, nil
}
