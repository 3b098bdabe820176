package natsadapter

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// Subjects and streams.
const (
	SubjectRequests        = "geoagg.requests"
	SubjectDomainCompleted = "geoagg.domains.completed"

	streamRequests = "AGGREGATION_REQUESTS"
	streamDomains  = "DOMAIN_EVENTS"

	headerContentType     = "Content-Type"
	headerContentEncoding = "Content-Encoding"
	contentTypeProtobuf   = "application/x-protobuf"
	contentTypeJSON       = "application/json"
)

var (
	zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zdec, _ = zstd.NewReader(nil)
)

// EncodeSummary packs a summary as a protobuf Struct.
func EncodeSummary(s *domain.Summary) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("summary to struct: %w", err)
	}
	return proto.Marshal(st)
}

// DecodeSummary reverses EncodeSummary.
func DecodeSummary(data []byte) (*domain.Summary, error) {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	raw, err := protojson.Marshal(st)
	if err != nil {
		return nil, err
	}
	var s domain.Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &s, nil
}

func requestMsg(subject string, req *domain.AggregationRequest) (*nats.Msg, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject)
	msg.Header.Set(headerContentType, contentTypeJSON)
	msg.Header.Set(headerContentEncoding, "zstd")
	msg.Data = zenc.EncodeAll(raw, make([]byte, 0, len(raw)/4))
	if req.RequestID != "" {
		msg.Header.Set(nats.MsgIdHdr, req.RequestID)
	}
	return msg, nil
}

func decodeRequest(msg *nats.Msg) (*domain.AggregationRequest, error) {
	data := msg.Data
	if msg.Header.Get(headerContentEncoding) == "zstd" {
		var err error
		if data, err = zdec.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("decompress request: %w", err)
		}
	}
	var req domain.AggregationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}
