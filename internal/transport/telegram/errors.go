package telegram

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"rafflebot/internal/transport"
)

// mapError translates telebot/network failures into the closed SendError
// shape the dispatcher classifies. Anything unrecognized passes through
// unchanged; the classifier treats it as transient.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &transport.SendError{
			Kind:       transport.KindRateLimited,
			Label:      "flood",
			Code:       429,
			RetryAfter: time.Duration(flood.RetryAfter) * time.Second,
			Err:        err,
		}
	}

	var api *tele.Error
	if errors.As(err, &api) {
		switch {
		case api.Code == 403:
			return &transport.SendError{Kind: transport.KindPermanent, Label: forbiddenLabel(api.Description), Code: api.Code, Err: err}
		case api.Code == 400:
			return &transport.SendError{Kind: transport.KindPermanent, Label: badRequestLabel(api.Description), Code: api.Code, Err: err}
		case api.Code >= 500:
			return &transport.SendError{Kind: transport.KindTransient, Label: "api_5xx", Code: api.Code, Err: err}
		default:
			return &transport.SendError{Kind: transport.KindUnknown, Label: fmt.Sprintf("api_error_%d", api.Code), Code: api.Code, Err: err}
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &transport.SendError{Kind: transport.KindTransient, Label: "timeout", Err: err}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &transport.SendError{Kind: transport.KindTransient, Label: "network", Err: err}
	}

	return err
}

func forbiddenLabel(desc string) string {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "blocked"):
		return "blocked"
	case strings.Contains(d, "deactivated"):
		return "deactivated"
	default:
		return "forbidden"
	}
}

func badRequestLabel(desc string) string {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "chat not found"):
		return "chat_not_found"
	default:
		return "bad_request"
	}
}
