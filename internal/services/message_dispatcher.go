package services

import (
	"bytes"
	"encoding/json"
	"math"
	"time"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

// titleFields are checked in order for the auction title of a bid.
var titleFields = []string{"auctionTitle", "title", "itemTitle"}

// MessageDispatcher decodes inbound frames and routes them by their "type" tag.
type MessageDispatcher struct {
	subscriptionID domain.SubscriptionID
	handler        domain.MessageHandler
	log            logger.Logger
	now            func() time.Time
}

func NewMessageDispatcher(subscriptionID domain.SubscriptionID, handler domain.MessageHandler,
	log logger.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		subscriptionID: subscriptionID,
		handler:        handler,
		log:            log,
		now:            time.Now,
	}
}

// Dispatch handles one frame. Errors are reported to the handler and returned; none of
// them affect the connection.
func (d *MessageDispatcher) Dispatch(frame []byte) error {
	msgType, fields, err := decodeEnvelope(frame)
	if err != nil {
		return d.fail(err, frame)
	}

	switch msgType {
	case domain.FrameConnection:
		info, err := decodeConnectionInfo(fields)
		if err != nil {
			return d.fail(err, frame)
		}
		d.log.Debug("Connection message", "subscription_id", d.subscriptionID, "message", info.Message)
		d.handler.HandleConnectionInfo(info)

	case domain.FrameBidUpdate:
		bid, err := d.decodeBid(fields)
		if err != nil {
			return d.fail(err, frame)
		}
		d.log.Debug("Bid update received", "subscription_id", d.subscriptionID,
			"amount", bid.Amount, "bidder", bid.BidderID)
		d.handler.HandleBidUpdate(bid)

	default:
		d.log.Warn("Unknown message type", "subscription_id", d.subscriptionID, "type", msgType)
		d.handler.HandleUnknownType(msgType)
		return &domain.UnknownMessageTypeError{Tag: msgType}
	}

	return nil
}

func (d *MessageDispatcher) fail(err error, frame []byte) error {
	d.log.Warn("Failed to handle message", "subscription_id", d.subscriptionID,
		"error", err, "frame", string(frame))
	d.handler.HandleDispatchError(err)
	return err
}

func decodeEnvelope(frame []byte) (string, map[string]json.RawMessage, error) {
	// Numbers stay unconverted so an out-of-range amount is reported by the field check.
	decoder := json.NewDecoder(bytes.NewReader(frame))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return "", nil, &domain.ParseError{Err: err}
	}

	fields, ok := value.(map[string]interface{})
	if !ok || fields == nil {
		return "", nil, &domain.ValidationError{Field: "frame", Reason: "must be a JSON object"}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		return "", nil, &domain.ParseError{Err: err}
	}

	msgType, present, err := stringField(raw, "", "type")
	if err != nil {
		return "", nil, err
	}
	if !present {
		return "", nil, &domain.ValidationError{Field: "type", Reason: "is required"}
	}
	return msgType, raw, nil
}

func decodeConnectionInfo(fields map[string]json.RawMessage) (domain.ConnectionInfo, error) {
	message, _, err := stringField(fields, domain.FrameConnection, "message")
	if err != nil {
		return domain.ConnectionInfo{}, err
	}
	auctionID, _, err := idField(fields, domain.FrameConnection, "auctionId")
	if err != nil {
		return domain.ConnectionInfo{}, err
	}
	return domain.ConnectionInfo{Message: message, AuctionID: auctionID}, nil
}

func (d *MessageDispatcher) decodeBid(fields map[string]json.RawMessage) (domain.Bid, error) {
	raw, ok := fields["data"]
	if !ok || isNull(raw) {
		return domain.Bid{}, &domain.ValidationError{MessageType: domain.FrameBidUpdate, Field: "data", Reason: "is required"}
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.Bid{}, &domain.ValidationError{MessageType: domain.FrameBidUpdate, Field: "data", Reason: "must be an object"}
	}

	amount, err := amountField(data, "bidAmount")
	if err != nil {
		return domain.Bid{}, err
	}

	bidder, present, err := stringField(data, domain.FrameBidUpdate, "bidderUsername")
	if err != nil {
		return domain.Bid{}, err
	}
	if !present || bidder == "" {
		return domain.Bid{}, &domain.ValidationError{MessageType: domain.FrameBidUpdate, Field: "bidderUsername", Reason: "is required"}
	}

	bid := domain.Bid{
		AuctionID: d.subscriptionID,
		Amount:    amount,
		BidderID:  bidder,
		BidTime:   d.now(),
	}

	for _, name := range titleFields {
		title, _, err := stringField(data, domain.FrameBidUpdate, name)
		if err != nil {
			return domain.Bid{}, err
		}
		if title != "" {
			bid.Title = title
			break
		}
	}

	auctionID, present, err := idField(data, domain.FrameBidUpdate, "auctionId")
	if err != nil {
		return domain.Bid{}, err
	}
	if present {
		bid.AuctionID = domain.SubscriptionID(auctionID)
	}

	bidTime, present, err := stringField(data, domain.FrameBidUpdate, "bidTime")
	if err != nil {
		return domain.Bid{}, err
	}
	if present {
		parsed, err := parseBidTime(bidTime)
		if err != nil {
			return domain.Bid{}, &domain.ValidationError{MessageType: domain.FrameBidUpdate, Field: "bidTime", Reason: "is not a recognised timestamp"}
		}
		bid.BidTime = parsed
	}

	return bid, nil
}

func amountField(data map[string]json.RawMessage, name string) (float64, error) {
	raw, ok := data[name]
	if !ok || isNull(raw) {
		return 0, &domain.ValidationError{MessageType: domain.FrameBidUpdate, Field: name, Reason: "is required"}
	}

	// json.Number also accepts quoted numbers, which are not allowed here.
	trimmed := bytes.TrimSpace(raw)
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var number json.Number
	if trimmed[0] == '"' || decoder.Decode(&number) != nil {
		return 0, &domain.ValidationError{MessageType: domain.FrameBidUpdate, Field: name, Reason: "must be a number"}
	}
	amount, err := number.Float64()
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, &domain.ValidationError{MessageType: domain.FrameBidUpdate, Field: name, Reason: "must be finite"}
	}
	if amount < 0 {
		return 0, &domain.ValidationError{MessageType: domain.FrameBidUpdate, Field: name, Reason: "must not be negative"}
	}
	return amount, nil
}

// stringField reads an optional string. A null value counts as absent.
func stringField(fields map[string]json.RawMessage, msgType, name string) (string, bool, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", false, nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false, &domain.ValidationError{MessageType: msgType, Field: name, Reason: "must be a string"}
	}
	return value, true, nil
}

// idField reads an identifier that may be encoded as a number or a string.
func idField(fields map[string]json.RawMessage, msgType, name string) (string, bool, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", false, nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, true, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var number json.Number
	if err := decoder.Decode(&number); err != nil {
		return "", false, &domain.ValidationError{MessageType: msgType, Field: name, Reason: "must be a number or a string"}
	}
	return number.String(), true, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func parseBidTime(value string) (time.Time, error) {
	if t, err := time.ParseInLocation(domain.BidTimeLayout, value, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
