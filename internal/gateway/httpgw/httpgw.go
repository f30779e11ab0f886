// Package httpgw implements gateway.Gateway as a client of the REST API
// served by internal/server.
package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maruel/pagetree/internal/apierrors"
	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/model"
	"github.com/maruel/pagetree/internal/server/dto"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// Options configures a Gateway.
type Options struct {
	// Token is sent as a bearer token when not empty.
	Token string
	// RequestsPerSecond throttles the client; 0 disables throttling.
	RequestsPerSecond float64
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the client; Timeout is then ignored.
	HTTPClient *http.Client
}

// Gateway talks to a remote server.
type Gateway struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ gateway.Gateway = (*Gateway)(nil)

// New returns a client of the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts *Options) (*Gateway, error) {
	if opts == nil {
		opts = &Options{}
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: scheme must be http or https", baseURL)
	}
	g := &Gateway{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      opts.Token,
		httpClient: opts.HTTPClient,
	}
	if g.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		g.httpClient = &http.Client{Timeout: timeout}
	}
	if opts.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(1, int(opts.RequestsPerSecond)))
	}
	return g, nil
}

// Error is an error response of the server. It matches the gateway
// sentinel of its code with errors.Is.
type Error struct {
	StatusCode int
	Code       apierrors.ErrorCode
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return e.Message
}

// Unwrap returns the gateway sentinel matching the error, if any.
func (e *Error) Unwrap() error {
	if err := e.Code.Sentinel(); err != nil {
		return err
	}
	if e.StatusCode == http.StatusNotFound {
		return gateway.ErrNotFound
	}
	return nil
}

// do sends a request and decodes the response into out when not nil.
func (g *Gateway) do(ctx context.Context, method, path string, in, out any) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response of %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	e := &Error{StatusCode: status}
	var body apierrors.Body
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Code != "" {
		e.Code = body.Error.Code
		e.Message = body.Error.Message
	} else {
		e.Message = strings.TrimSpace(string(data))
	}
	return e
}

func esc(id string) string {
	return url.PathEscape(id)
}

// GetWorkspaces implements gateway.Gateway.
func (g *Gateway) GetWorkspaces(ctx context.Context) ([]*model.Workspace, error) {
	var resp dto.ListWorkspacesResponse
	if err := g.do(ctx, http.MethodGet, "/api/workspaces", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Workspaces, nil
}

// CreateWorkspace implements gateway.Gateway.
func (g *Gateway) CreateWorkspace(ctx context.Context, name, ownerID string) (*model.Workspace, error) {
	w := &model.Workspace{}
	req := &dto.CreateWorkspaceRequest{Name: name, OwnerID: ownerID}
	if err := g.do(ctx, http.MethodPost, "/api/workspaces", req, w); err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateWorkspace implements gateway.Gateway.
func (g *Gateway) UpdateWorkspace(ctx context.Context, id, name string) error {
	return g.do(ctx, http.MethodPatch, "/api/workspaces/"+esc(id), &dto.UpdateWorkspaceRequest{Name: name}, nil)
}

// DeleteWorkspace implements gateway.Gateway.
func (g *Gateway) DeleteWorkspace(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/api/workspaces/"+esc(id), nil, nil)
}

// GetPages implements gateway.Gateway.
func (g *Gateway) GetPages(ctx context.Context, workspaceID string) ([]*model.Page, error) {
	var resp dto.ListPagesResponse
	if err := g.do(ctx, http.MethodGet, "/api/workspaces/"+esc(workspaceID)+"/pages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

// CreatePage implements gateway.Gateway.
func (g *Gateway) CreatePage(ctx context.Context, workspaceID, parentID, title, id string) (*model.Page, error) {
	p := &model.Page{}
	req := &dto.CreatePageRequest{ParentID: parentID, Title: title, ID: id}
	if err := g.do(ctx, http.MethodPost, "/api/workspaces/"+esc(workspaceID)+"/pages", req, p); err != nil {
		return nil, err
	}
	return p, nil
}

// BulkCreatePages implements gateway.Gateway.
func (g *Gateway) BulkCreatePages(ctx context.Context, workspaceID, parentID string, pages []model.PageInput) ([]*model.Page, error) {
	var resp dto.ListPagesResponse
	req := &dto.BulkCreatePagesRequest{ParentID: parentID, Pages: pages}
	if err := g.do(ctx, http.MethodPost, "/api/workspaces/"+esc(workspaceID)+"/pages/bulk", req, &resp); err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

// UpdatePage implements gateway.Gateway.
func (g *Gateway) UpdatePage(ctx context.Context, id string, u *model.PageUpdate) error {
	return g.do(ctx, http.MethodPatch, "/api/pages/"+esc(id), &dto.UpdatePageRequest{PageUpdate: *u}, nil)
}

// DeletePage implements gateway.Gateway.
func (g *Gateway) DeletePage(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/api/pages/"+esc(id), nil, nil)
}

// BulkDeletePages implements gateway.Gateway.
func (g *Gateway) BulkDeletePages(ctx context.Context, ids []string) error {
	return g.do(ctx, http.MethodPost, "/api/pages/bulk-delete", &dto.BulkDeletePagesRequest{IDs: ids}, nil)
}

// GetBlocks implements gateway.Gateway.
func (g *Gateway) GetBlocks(ctx context.Context, pageID string) ([]*model.FlatBlock, error) {
	var resp dto.ListBlocksResponse
	if err := g.do(ctx, http.MethodGet, "/api/pages/"+esc(pageID)+"/blocks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Blocks, nil
}

// CreateBlock implements gateway.Gateway.
func (g *Gateway) CreateBlock(ctx context.Context, pageID string, typ model.BlockType, content, parentID string, index int) (*model.Block, error) {
	b := &model.Block{}
	req := &dto.CreateBlockRequest{Type: typ, Content: content, ParentID: parentID, Index: index}
	if err := g.do(ctx, http.MethodPost, "/api/pages/"+esc(pageID)+"/blocks", req, b); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBlock implements gateway.Gateway.
func (g *Gateway) UpdateBlock(ctx context.Context, id string, u *model.BlockUpdate) error {
	return g.do(ctx, http.MethodPatch, "/api/blocks/"+esc(id), &dto.UpdateBlockRequest{BlockUpdate: *u}, nil)
}

// DeleteBlock implements gateway.Gateway.
func (g *Gateway) DeleteBlock(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/api/blocks/"+esc(id), nil, nil)
}

// SyncBlocks implements gateway.Gateway.
func (g *Gateway) SyncBlocks(ctx context.Context, pageID string, blocks []*model.FlatBlock) error {
	if blocks == nil {
		blocks = []*model.FlatBlock{}
	}
	return g.do(ctx, http.MethodPut, "/api/pages/"+esc(pageID)+"/blocks", &dto.SyncBlocksRequest{Blocks: blocks}, nil)
}

// IsUnauthorized reports whether err is a rejected bearer token.
func IsUnauthorized(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == apierrors.ErrUnauthorized
}
