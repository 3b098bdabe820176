package natsadapter

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

func TestSummaryRoundTrip(t *testing.T) {
	in := &domain.Summary{
		ID:           "7b0c1d0e-2f6a-4c1e-9a61-0f3b5f0d9e11",
		CreatedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		FeatureCount: 3,
		ClusterCount: 1,
		InputCount:   5,
		BBox:         domain.BoxOf(domain.Pt(0, 0), domain.Pt(4, 2)),
		Params:       domain.DefaultParams(),
	}
	data, err := EncodeSummary(in)
	require.NoError(t, err)

	out, err := DecodeSummary(data)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.FeatureCount, out.FeatureCount)
	assert.Equal(t, in.BBox, out.BBox)
	assert.Equal(t, in.Params, out.Params)
}

func TestRequestMsgRoundTrip(t *testing.T) {
	req := &domain.AggregationRequest{
		RequestID: "r-1",
		Collections: []domain.Collection{{
			Name:     "a",
			Features: []domain.Feature{{ID: 1, Geometry: domain.NewPoint(domain.Pt(1, 2))}},
		}},
	}
	msg, err := requestMsg(SubjectRequests, req)
	require.NoError(t, err)
	assert.Equal(t, "zstd", msg.Header.Get(headerContentEncoding))
	assert.Equal(t, "r-1", msg.Header.Get(nats.MsgIdHdr))

	got, err := decodeRequest(msg)
	require.NoError(t, err)
	assert.Equal(t, "r-1", got.RequestID)
	require.Len(t, got.Collections, 1)
	assert.Equal(t, domain.Pt(1, 2), got.Collections[0].Features[0].Geometry.Coord)
}

func TestDecodeRequest_Garbage(t *testing.T) {
	msg := nats.NewMsg(SubjectRequests)
	msg.Header.Set(headerContentEncoding, "zstd")
	msg.Data = []byte("not zstd")
	_, err := decodeRequest(msg)
	assert.Error(t, err)
}

func TestRedeliveryDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, redeliveryDelay(0))
	assert.Equal(t, 5*time.Second, redeliveryDelay(1))
	assert.Equal(t, 10*time.Second, redeliveryDelay(2))
	assert.Equal(t, 20*time.Second, redeliveryDelay(3))
	assert.Equal(t, time.Minute, redeliveryDelay(5))
	assert.Equal(t, time.Minute, redeliveryDelay(80))
}

func TestStreams(t *testing.T) {
	cfgs := streams()
	require.Len(t, cfgs, 2)
	assert.Equal(t, []string{SubjectRequests}, cfgs[0].Subjects)
	assert.Equal(t, nats.WorkQueuePolicy, cfgs[0].Retention)
	assert.NotZero(t, cfgs[0].Duplicates)
	assert.Equal(t, []string{SubjectDomainCompleted}, cfgs[1].Subjects)
}
