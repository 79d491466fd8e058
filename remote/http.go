package remote

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"lottery-panel/database/model"
	"lottery-panel/logger"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
)

// HTTPClient talks to the hosted document store. Every call carries a
// hard deadline; on expiry or transport failure it reports
// ErrUnavailable rather than blocking.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client

	// feed has no ReadTimeout: a quiet long poll holds the connection
	// open for the whole poll window, which the regular client's read
	// deadline would cut short.
	feed *fasthttp.Client
}

const longPollWindow = 30 * time.Second

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		timeout: timeout,
		client: &fasthttp.Client{
			MaxIdleConnDuration: time.Minute,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
		},
		feed: &fasthttp.Client{
			MaxIdleConnDuration: time.Minute,
			WriteTimeout:        timeout,
		},
	}
}

func (h *HTTPClient) ticketURL(id string) string {
	return h.baseURL + "/v1/tickets/" + id
}

func (h *HTTPClient) Fetch(ctx context.Context, id string) (*model.Ticket, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(h.ticketURL(id))
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := h.client.DoTimeout(req, resp, h.deadline(ctx)); err != nil {
		return nil, ErrUnavailable
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK:
		var t model.Ticket
		if err := json.Unmarshal(resp.Body(), &t); err != nil {
			logger.Warning("remote: bad ticket document:", err)
			return nil, ErrUnavailable
		}
		return &t, nil
	case fasthttp.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, ErrUnavailable
	}
}

func (h *HTTPClient) ConditionalWrite(ctx context.Context, t *model.Ticket, expectedVersion int64) (*WriteResult, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s?expectedVersion=%d", h.ticketURL(t.Id), expectedVersion))
	req.Header.SetMethod(fasthttp.MethodPut)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := h.client.DoTimeout(req, resp, h.deadline(ctx)); err != nil {
		return nil, ErrUnavailable
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK:
		return &WriteResult{Committed: true, Current: t.Clone()}, nil
	case fasthttp.StatusConflict:
		// The store returns its current copy with the rejection.
		var current model.Ticket
		if len(resp.Body()) == 0 {
			return &WriteResult{Committed: false}, nil
		}
		if err := json.Unmarshal(resp.Body(), &current); err != nil {
			logger.Warning("remote: bad conflict document:", err)
			return nil, ErrUnavailable
		}
		return &WriteResult{Committed: false, Current: &current}, nil
	default:
		return nil, ErrUnavailable
	}
}

// changeBatch is one long-poll response from the change feed.
type changeBatch struct {
	Seq     int64           `json:"seq"`
	Tickets []*model.Ticket `json:"tickets"`
}

// Subscribe long-polls the draw's change feed. Deliveries may repeat
// or arrive out of order across reconnects; the consumer merges by
// version. The returned func stops the loop.
func (h *HTTPClient) Subscribe(ctx context.Context, drawId string, fn func(*model.Ticket)) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)

	go func() {
		var afterSeq int64
		for loopCtx.Err() == nil {
			batch, err := h.pollChanges(drawId, afterSeq)
			if err != nil {
				// backoff, then reconnect from the last seen seq
				select {
				case <-loopCtx.Done():
					return
				case <-time.After(h.timeout):
				}
				continue
			}
			for _, t := range batch.Tickets {
				fn(t)
			}
			if batch.Seq > afterSeq {
				afterSeq = batch.Seq
			}
		}
	}()

	return cancel, nil
}

func (h *HTTPClient) pollChanges(drawId string, afterSeq int64) (*changeBatch, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(h.baseURL + "/v1/draws/" + drawId + "/changes?afterSeq=" + strconv.FormatInt(afterSeq, 10))
	req.Header.SetMethod(fasthttp.MethodGet)

	// long poll: the store holds the request up to ~25s, so allow more
	// than the regular call deadline
	if err := h.feed.DoTimeout(req, resp, longPollWindow); err != nil {
		return nil, ErrUnavailable
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, ErrUnavailable
	}
	var batch changeBatch
	if err := json.Unmarshal(resp.Body(), &batch); err != nil {
		return nil, ErrUnavailable
	}
	return &batch, nil
}

func (h *HTTPClient) deadline(ctx context.Context) time.Duration {
	if ctx != nil {
		if d, ok := ctx.Deadline(); ok {
			if remaining := time.Until(d); remaining < h.timeout {
				return remaining
			}
		}
	}
	return h.timeout
}
