package ticker

import (
	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
)

const TypeMatchUpdate = "MATCH_UPDATE"

var (
	ErrInvalidDocument = errors.New("ticker: invalid overview document")
	ErrUnknownEvent    = errors.New("ticker: unknown update event")
)

// EventKind discriminates stream payloads.
type EventKind string

const (
	EventOverview    EventKind = "overview"
	EventMatchUpdate EventKind = "match_update"
)

// MatchStateUpdate is a single match delta pushed over the stream.
type MatchStateUpdate struct {
	MatchUUID string `json:"matchUuid"`
	MatchState
}

// UpdateEvent is one decoded stream frame. Exactly one of Overview and Match
// is set, according to Kind.
type UpdateEvent struct {
	Kind     EventKind
	Overview *Overview
	Match    *MatchStateUpdate
}

// ConcernsMatch reports whether the event is a delta for matchID.
func (e UpdateEvent) ConcernsMatch(matchID string) bool {
	return e.Kind == EventMatchUpdate && e.Match != nil && matchID != "" && e.Match.MatchUUID == matchID
}

type frame struct {
	Type        string                `json:"type"`
	Payload     *MatchStateUpdate     `json:"payload"`
	MatchSeries map[string]League     `json:"matchSeries"`
	MatchDays   *[]MatchDay           `json:"matchDays"`
	MatchStates map[string]MatchState `json:"matchStates"`
}

// DecodeOverview parses a full snapshot. Well-formed JSON that lacks
// matchDays is rejected with ErrInvalidDocument.
func DecodeOverview(raw []byte) (*Overview, error) {
	var doc Overview
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decode overview")
	}
	if !doc.IsOverview() {
		return nil, errors.WithStack(ErrInvalidDocument)
	}
	doc.normalize()
	return &doc, nil
}

// DecodeUpdateEvent parses a stream frame. A payload carrying matchDays is a
// full overview regardless of any type tag.
func DecodeUpdateEvent(raw []byte) (UpdateEvent, error) {
	var f frame
	if err := sonic.Unmarshal(raw, &f); err != nil {
		return UpdateEvent{}, errors.Wrap(err, "decode update event")
	}

	if f.MatchDays != nil {
		doc := &Overview{
			MatchSeries: f.MatchSeries,
			MatchDays:   *f.MatchDays,
			MatchStates: f.MatchStates,
		}
		if doc.MatchDays == nil {
			doc.MatchDays = []MatchDay{}
		}
		doc.normalize()
		return UpdateEvent{Kind: EventOverview, Overview: doc}, nil
	}

	if f.Type == TypeMatchUpdate {
		if f.Payload == nil || f.Payload.MatchUUID == "" {
			return UpdateEvent{}, errors.Wrap(ErrUnknownEvent, "match update without matchUuid")
		}
		return UpdateEvent{Kind: EventMatchUpdate, Match: f.Payload}, nil
	}

	return UpdateEvent{}, errors.Wrapf(ErrUnknownEvent, "type %q", f.Type)
}
