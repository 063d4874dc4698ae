package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// AuditRecord is one line of dispatch-audit data: what datagram the
// dispatcher finished handling, and how.
type AuditRecord struct {
	TypeTag   uint32    `json:"type_tag"`
	Sender    string    `json:"sender"`
	Outcome   string    `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditSink receives a record for every datagram the dispatcher
// finishes handling. Content storage (STORE/FIND_VALUE) stays out of
// scope, but observability is ambient: a sink is a side channel whose
// errors the dispatcher ignores. The dispatcher calls it synchronously,
// bounding each call with a 2-second deadline.
type AuditSink interface {
	Index(ctx context.Context, rec AuditRecord) error
}

// ElasticsearchAuditSink indexes audit records into Elasticsearch,
// backing an optional dispatch-audit trail.
type ElasticsearchAuditSink struct {
	client *elasticsearch.Client
	index  string
	logger *zap.Logger
}

// NewElasticsearchAuditSink builds a sink against addresses (e.g.
// "http://localhost:9200") that writes to index.
func NewElasticsearchAuditSink(addresses []string, index string, logger *zap.Logger) (*ElasticsearchAuditSink, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElasticsearchAuditSink{client: client, index: index, logger: logger}, nil
}

// Index writes rec to the configured index. A failed request is logged
// and returned; an error response from Elasticsearch is logged and not
// returned. The dispatcher discards the returned error, so the audit
// trail never affects dispatch outcomes.
func (s *ElasticsearchAuditSink) Index(ctx context.Context, rec AuditRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index: s.index,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		s.logger.Warn("peer: audit index request failed", zap.Error(err))
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		s.logger.Warn("peer: audit index response error", zap.String("status", res.Status()))
	}
	return nil
}
