package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/nanzhong/nsequote/market"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.uber.org/zap"
)

type httpErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
}

type httpError struct {
	err        error
	statusCode int
}

func newHTTPError(err error, status int) error {
	return &httpError{err: err, statusCode: status}
}

func newHTTPErrorWithMessage(err error, message string, status int) error {
	return &httpError{err: fmt.Errorf("%s: %w", message, err), statusCode: status}
}

func (e *httpError) Error() string {
	return fmt.Sprintf("%s: %d", e.err.Error(), e.statusCode)
}

func (e *httpError) Unwrap() error {
	return e.err
}

func (e *httpError) WriteResponse(w http.ResponseWriter) error {
	return json.NewEncoder(w).Encode(&httpErrorResponse{
		StatusCode: e.statusCode,
		Error:      e.err.Error(),
	})
}

// Tracker is what the bot needs from market.Tracker.
type Tracker interface {
	LivePrice(ctx context.Context, symbol string) (market.Quote, bool)
	LastTradedPrice(ctx context.Context, symbol string) (market.Quote, bool)
	IsMarketOpen() bool
}

const usage = "Try `live RELIANCE` for the live NSE price, `ltp RELIANCE` for the last traded price or `market` to check if the market is open."

var symbolRegexp = regexp.MustCompile(`(?i)^([a-z0-9&-]+)[^a-z0-9&-]*$`)

type command struct {
	name   string
	symbol string
}

type eventHandler struct {
	signingSecret string

	log         *zap.Logger
	slackClient *slack.Client
	tracker     Tracker
}

func NewEventHandler(slackClient *slack.Client, signingSecret string, tracker Tracker, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if signingSecret == "" {
		log.Warn("Slack signing secret not set, requests will not be verified")
	}
	return &eventHandler{
		signingSecret: signingSecret,

		log:         log,
		slackClient: slackClient,
		tracker:     tracker,
	}
}

func (h *eventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	event, err := h.validateRequest(r)
	if err != nil {
		switch err {
		case slack.ErrMissingHeaders, slack.ErrExpiredTimestamp:
			h.respondWithErr(w, r, newHTTPError(err, http.StatusBadRequest))
		default:
			h.respondWithErr(w, r, fmt.Errorf("validating request : %w", err))
		}
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		verificationEvent := event.Data.(*slackevents.EventsAPIURLVerificationEvent)
		_ = json.NewEncoder(w).Encode(&slackevents.ChallengeResponse{Challenge: verificationEvent.Challenge})
	case slackevents.CallbackEvent:
		if event.InnerEvent.Type != slackevents.AppMention {
			h.respondWithErr(w, r, newHTTPError(errors.New("unhandled event"), http.StatusNotImplemented))
			return
		}

		appMentionEvent := event.InnerEvent.Data.(*slackevents.AppMentionEvent)
		_, _, err = h.slackClient.PostMessageContext(
			r.Context(),
			appMentionEvent.Channel,
			h.reply(r.Context(), parseCommand(strings.Fields(appMentionEvent.Text))),
			slack.MsgOptionTS(appMentionEvent.TimeStamp),
			slack.MsgOptionBroadcast(),
		)
		if err != nil {
			// Best effort attempt to send a message indicating failure
			_, _, _ = h.slackClient.PostMessageContext(
				r.Context(),
				appMentionEvent.Channel, slack.MsgOptionText("Sorry, I messed something up... Try again later :poop:", true),
				slack.MsgOptionTS(appMentionEvent.TimeStamp),
				slack.MsgOptionBroadcast(),
			)
			h.respondWithErr(w, r, newHTTPErrorWithMessage(err, "responding to mention", http.StatusInternalServerError))
			return
		}
		w.Write([]byte(`{}`))
	default:
		h.respondWithErr(w, r, newHTTPError(errors.New("unhandled event"), http.StatusNotImplemented))
	}
}

func (h *eventHandler) reply(ctx context.Context, cmd command) slack.MsgOption {
	switch cmd.name {
	case "live":
		if cmd.symbol == "" {
			break
		}
		q, ok := h.tracker.LivePrice(ctx, cmd.symbol)
		if !ok {
			return slack.MsgOptionText("Failed to fetch live price. Please try again later. :cry:", false)
		}
		return quoteMessage("Live price", q)
	case "ltp":
		if cmd.symbol == "" {
			break
		}
		q, ok := h.tracker.LastTradedPrice(ctx, cmd.symbol)
		if !ok {
			return slack.MsgOptionText("Failed to fetch last traded price. Please try again later. :cry:", false)
		}
		return quoteMessage("Last traded price", q)
	case "market":
		if h.tracker.IsMarketOpen() {
			return slack.MsgOptionText("The NSE market is open :chart_with_upwards_trend:", false)
		}
		return slack.MsgOptionText("The NSE market is closed :zzz:", false)
	}
	return slack.MsgOptionText(usage, false)
}

func quoteMessage(title string, q market.Quote) slack.MsgOption {
	return slack.MsgOptionBlocks(
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, fmt.Sprintf("%s (NSE)", q.Symbol), false, false)),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("%s: *%s*", title, q), false, false),
			nil,
			nil,
		),
	)
}

func (h *eventHandler) validateRequest(r *http.Request) (slackevents.EventsAPIEvent, error) {
	if r.Method != http.MethodPost {
		return slackevents.EventsAPIEvent{}, newHTTPError(fmt.Errorf("invalid method: %s", r.Method), http.StatusMethodNotAllowed)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return slackevents.EventsAPIEvent{}, fmt.Errorf("reading request body: %w", err)
	}
	defer r.Body.Close()

	if h.signingSecret != "" {
		sv, err := slack.NewSecretsVerifier(r.Header, h.signingSecret)
		if err != nil {
			return slackevents.EventsAPIEvent{}, err
		}

		if _, err := sv.Write(body); err != nil {
			return slackevents.EventsAPIEvent{}, newHTTPErrorWithMessage(err, "verifying signature", http.StatusInternalServerError)
		}
		if err := sv.Ensure(); err != nil {
			return slackevents.EventsAPIEvent{}, newHTTPErrorWithMessage(err, "verifying signature", http.StatusUnauthorized)
		}
	}

	// NOTE prefer verifying signature over verification token.
	return slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
}

func (h *eventHandler) respondWithErr(w http.ResponseWriter, r *http.Request, err error) error {
	h.log.Warn("Responding with error",
		zap.String("method", r.Method), zap.String("url", r.URL.String()), zap.Error(err))

	var he *httpError
	if errors.As(err, &he) {
		w.WriteHeader(he.statusCode)
		return he.WriteResponse(w)
	}

	w.WriteHeader(http.StatusInternalServerError)
	return json.NewEncoder(w).Encode(&httpErrorResponse{
		StatusCode: http.StatusInternalServerError,
		Error:      err.Error(),
	})
}

// parseCommand finds the first known command among the mention tokens and the
// symbol following it. The bot mention itself is skipped like any other token.
func parseCommand(tokens []string) command {
	for i, token := range tokens {
		name := strings.ToLower(strings.Trim(token, ".,:!?"))
		switch name {
		case "last":
			name = "ltp"
		case "live", "ltp", "market":
		default:
			continue
		}

		cmd := command{name: name}
		if i+1 < len(tokens) {
			cmd.symbol = normalizeSymbol(tokens[i+1])
		}
		return cmd
	}
	return command{}
}

// Slack escapes &, < and > in message text.
func normalizeSymbol(token string) string {
	matches := symbolRegexp.FindStringSubmatch(html.UnescapeString(token))
	if matches == nil {
		return ""
	}
	return strings.ToUpper(matches[1])
}
