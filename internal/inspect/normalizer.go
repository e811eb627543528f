package inspect

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"sqsinspect/internal/types"
)

// isoMillis renders timestamps in UTC with millisecond precision.
const isoMillis = "2006-01-02T15:04:05.000Z"

const (
	attrSentTimestamp         = string(sqstypes.MessageSystemAttributeNameSentTimestamp)
	attrFirstReceiveTimestamp = string(sqstypes.MessageSystemAttributeNameApproximateFirstReceiveTimestamp)
)

// Normalize converts a received SQS message into its output form.
//
// The returned record is always complete. A non-nil error is only ever an
// ErrCodeBodyMalformed AppError: the body was not valid JSON and has been kept
// verbatim as a string. Callers should warn and carry on.
func Normalize(msg sqstypes.Message) (types.NormalizedMessage, error) {
	id := aws.ToString(msg.MessageId)
	if id == "" {
		id = types.UnknownMessageID
	}

	sent := epochMillis(msg.Attributes, attrSentTimestamp)
	firstReceive := epochMillis(msg.Attributes, attrFirstReceiveTimestamp)

	out := types.NormalizedMessage{
		MessageID:        id,
		SentTime:         formatMillis(sent),
		SentTimeEpoch:    sent,
		FirstReceiveTime: formatMillis(firstReceive),
		Attributes:       convertAttributes(msg.MessageAttributes),
	}

	body := aws.ToString(msg.Body)
	if json.Valid([]byte(body)) {
		out.Body = json.RawMessage(body)
		return out, nil
	}

	out.Body = body
	return out, types.NewAppErrorWithDetails(
		types.ErrCodeBodyMalformed,
		"message body is not valid JSON",
		nil,
		map[string]any{"message_id": id},
	)
}

// NormalizeAll normalizes msgs in order, logging one warning per malformed
// body. It returns the normalized records and the number of malformed bodies.
func NormalizeAll(ctx context.Context, msgs []sqstypes.Message, logger *slog.Logger) ([]types.NormalizedMessage, int) {
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]types.NormalizedMessage, 0, len(msgs))
	malformed := 0
	for _, msg := range msgs {
		n, err := Normalize(msg)
		if err != nil {
			malformed++
			logger.WarnContext(ctx, "payload not in json format",
				"message_id", n.MessageID,
				"body_bytes", len(aws.ToString(msg.Body)),
			)
		}
		out = append(out, n)
	}
	return out, malformed
}

// epochMillis reads an epoch-millisecond system attribute. Absent or
// unparsable values read as 0.
func epochMillis(attrs map[string]string, name string) int64 {
	raw, ok := attrs[name]
	if !ok {
		return 0
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(isoMillis)
}

func convertAttributes(in map[string]sqstypes.MessageAttributeValue) map[string]types.MessageAttribute {
	out := make(map[string]types.MessageAttribute, len(in))
	for name, v := range in {
		out[name] = types.MessageAttribute{
			DataType:         aws.ToString(v.DataType),
			StringValue:      v.StringValue,
			BinaryValue:      v.BinaryValue,
			StringListValues: v.StringListValues,
			BinaryListValues: v.BinaryListValues,
		}
	}
	return out
}
