// Package api provides functionality for interacting with the kanban server's
// REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/danielolaszy/boardsync/internal/config"
	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/danielolaszy/boardsync/pkg/models"
	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
)

// RequestIDHeader carries a per-request id so client and server logs can be
// correlated.
const RequestIDHeader = "X-Request-ID"

// Client encapsulates the kanban REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient creates a client for the REST root in cfg. The HTTP transport
// owns the request timeout.
func NewClient(cfg *config.Config) (*Client, error) {
	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	return NewClientWithHTTP(cfg.API.URL, httpClient)
}

// NewClientWithHTTP creates a client using a caller-supplied http.Client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid api url %q: scheme and host are required", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logging.Debug("api client configured", "base_url", parsed.String())

	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Error is returned when the server answers with a non-2xx status.
type Error struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Method and Path identify the failed request.
	Method string
	Path   string

	// Detail is the server's explanation, taken from the JSON "detail"
	// field when present and from the raw body otherwise.
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
}

// IsNotFound reports whether the server answered 404.
func (e *Error) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

type moveStageRequest struct {
	NewStage models.Stage `json:"new_stage"`
}

type moveEpicRequest struct {
	NewStage        models.Stage `json:"new_stage"`
	IncludeChildren bool         `json:"include_children"`
}

type deleteOptions struct {
	Cascade bool `url:"cascade"`
}

type batchDeleteRequest struct {
	TicketIDs []string `json:"ticket_ids"`
}

type createTicketRequest struct {
	SectionName string `json:"section_name"`
	Title       string `json:"title"`
}

type createChildRequest struct {
	Title string `json:"title"`
}

type invokeAgentRequest struct {
	ProjectID   string `json:"project_id"`
	ProjectPath string `json:"project_path"`
	Prompt      string `json:"prompt"`
}

type invokeAgentResponse struct {
	InvocationID string `json:"invocation_id"`
}

type saveNoteRequest struct {
	Sectors []models.NoteSector `json:"sectors"`
}

type pushNoteRequest struct {
	SectorNames []string `json:"sector_names"`
}

type agentStatusResponse struct {
	Status string  `json:"status"`
	Output string  `json:"output"`
	Error  *string `json:"error"`
}

// FetchTickets returns every ticket of a project.
func (c *Client) FetchTickets(ctx context.Context, projectID string) (*models.TicketList, error) {
	var list models.TicketList
	if err := c.do(ctx, http.MethodGet, ticketsPath(projectID), nil, nil, &list); err != nil {
		return nil, fmt.Errorf("failed to fetch tickets for project %s: %w", projectID, err)
	}
	return &list, nil
}

// MoveTicketStage moves one ticket to a new stage and returns the updated
// ticket.
func (c *Client) MoveTicketStage(ctx context.Context, projectID, ticketID string, stage models.Stage) (*models.Ticket, error) {
	var ticket models.Ticket
	path := ticketPath(projectID, ticketID) + "/stage"
	if err := c.do(ctx, http.MethodPatch, path, nil, moveStageRequest{NewStage: stage}, &ticket); err != nil {
		return nil, fmt.Errorf("failed to move ticket %s to %s: %w", ticketID, stage, err)
	}
	return &ticket, nil
}

// MoveEpicStage moves an epic, and optionally its children, to a new stage.
// It returns every ticket the server changed.
func (c *Client) MoveEpicStage(ctx context.Context, projectID, ticketID string, stage models.Stage, includeChildren bool) ([]models.Ticket, error) {
	var tickets []models.Ticket
	path := ticketPath(projectID, ticketID) + "/move-epic"
	body := moveEpicRequest{NewStage: stage, IncludeChildren: includeChildren}
	if err := c.do(ctx, http.MethodPatch, path, nil, body, &tickets); err != nil {
		return nil, fmt.Errorf("failed to move epic %s to %s: %w", ticketID, stage, err)
	}
	return tickets, nil
}

// DeleteTicket removes a ticket, and its children when cascade is set, and
// returns the project's remaining tickets.
func (c *Client) DeleteTicket(ctx context.Context, projectID, ticketID string, cascade bool) (*models.TicketList, error) {
	params, err := query.Values(deleteOptions{Cascade: cascade})
	if err != nil {
		return nil, fmt.Errorf("failed to encode delete options: %w", err)
	}

	var list models.TicketList
	if err := c.do(ctx, http.MethodDelete, ticketPath(projectID, ticketID), params, nil, &list); err != nil {
		return nil, fmt.Errorf("failed to delete ticket %s: %w", ticketID, err)
	}
	return &list, nil
}

// BatchDeleteTickets removes several tickets in a single request and returns
// the project's remaining tickets.
func (c *Client) BatchDeleteTickets(ctx context.Context, projectID string, ticketIDs []string) (*models.TicketList, error) {
	var list models.TicketList
	path := ticketsPath(projectID) + "/batch-delete"
	if err := c.do(ctx, http.MethodPost, path, nil, batchDeleteRequest{TicketIDs: ticketIDs}, &list); err != nil {
		return nil, fmt.Errorf("failed to delete %d tickets: %w", len(ticketIDs), err)
	}
	return &list, nil
}

// CreateTicket appends a ticket to a section and returns the project's
// tickets.
func (c *Client) CreateTicket(ctx context.Context, projectID, sectionName, title string) (*models.TicketList, error) {
	var list models.TicketList
	body := createTicketRequest{SectionName: sectionName, Title: title}
	if err := c.do(ctx, http.MethodPost, ticketsPath(projectID), nil, body, &list); err != nil {
		return nil, fmt.Errorf("failed to create ticket in section %q: %w", sectionName, err)
	}
	return &list, nil
}

// CreateChildTicket adds a child under an existing ticket and returns the
// project's tickets.
func (c *Client) CreateChildTicket(ctx context.Context, projectID, parentTicketID, title string) (*models.TicketList, error) {
	var list models.TicketList
	path := ticketPath(projectID, parentTicketID) + "/children"
	if err := c.do(ctx, http.MethodPost, path, nil, createChildRequest{Title: title}, &list); err != nil {
		return nil, fmt.Errorf("failed to create child of ticket %s: %w", parentTicketID, err)
	}
	return &list, nil
}

// ListProjects returns every known project.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, nil, &projects); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// FetchProject returns a single project.
func (c *Client) FetchProject(ctx context.Context, projectID string) (*models.Project, error) {
	var project models.Project
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID), nil, nil, &project); err != nil {
		return nil, fmt.Errorf("failed to fetch project %s: %w", projectID, err)
	}
	return &project, nil
}

// FetchDashboard returns the cross-project summary.
func (c *Client) FetchDashboard(ctx context.Context) (*models.Dashboard, error) {
	var dashboard models.Dashboard
	if err := c.do(ctx, http.MethodGet, "/projects/dashboard", nil, nil, &dashboard); err != nil {
		return nil, fmt.Errorf("failed to fetch dashboard: %w", err)
	}
	return &dashboard, nil
}

// FetchNote returns a project's note.
func (c *Client) FetchNote(ctx context.Context, projectID string) (*models.ProjectNote, error) {
	var note models.ProjectNote
	if err := c.do(ctx, http.MethodGet, notesPath(projectID), nil, nil, &note); err != nil {
		return nil, fmt.Errorf("failed to fetch note of project %s: %w", projectID, err)
	}
	return &note, nil
}

// SaveNote replaces every sector of a project's note.
func (c *Client) SaveNote(ctx context.Context, projectID string, sectors []models.NoteSector) (*models.ProjectNote, error) {
	if sectors == nil {
		sectors = []models.NoteSector{}
	}
	var note models.ProjectNote
	if err := c.do(ctx, http.MethodPut, notesPath(projectID), nil, saveNoteRequest{Sectors: sectors}, &note); err != nil {
		return nil, fmt.Errorf("failed to save note of project %s: %w", projectID, err)
	}
	return &note, nil
}

// PushNote writes note sectors as files into the project's directory. With no
// sector names every sector is pushed.
func (c *Client) PushNote(ctx context.Context, projectID string, sectorNames []string) (*models.PushResult, error) {
	var body any
	if len(sectorNames) > 0 {
		body = pushNoteRequest{SectorNames: sectorNames}
	}
	var result models.PushResult
	if err := c.do(ctx, http.MethodPost, notesPath(projectID)+"/push", nil, body, &result); err != nil {
		return nil, fmt.Errorf("failed to push note of project %s: %w", projectID, err)
	}
	return &result, nil
}

// InvokeAgent starts the automation agent in a project's directory and
// returns the new invocation in the running state.
func (c *Client) InvokeAgent(ctx context.Context, projectID, projectPath, prompt string) (*models.AgentInvocation, error) {
	var resp invokeAgentResponse
	body := invokeAgentRequest{ProjectID: projectID, ProjectPath: projectPath, Prompt: prompt}
	if err := c.do(ctx, http.MethodPost, "/agent/invoke", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("failed to invoke agent for project %s: %w", projectID, err)
	}
	return &models.AgentInvocation{ID: resp.InvocationID, Status: models.AgentRunning}, nil
}

// AgentStatus polls an invocation. Output is split into non-empty lines.
func (c *Client) AgentStatus(ctx context.Context, invocationID string) (*models.AgentInvocation, error) {
	var resp agentStatusResponse
	if err := c.do(ctx, http.MethodGet, "/agent/status/"+url.PathEscape(invocationID), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get agent status %s: %w", invocationID, err)
	}

	inv := &models.AgentInvocation{
		ID:          invocationID,
		Status:      models.AgentStatus(resp.Status),
		OutputLines: []string{},
	}
	for _, line := range strings.Split(resp.Output, "\n") {
		if line != "" {
			inv.OutputLines = append(inv.OutputLines, line)
		}
	}
	if resp.Error != nil {
		inv.Error = *resp.Error
	}
	return inv, nil
}

func ticketsPath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID) + "/tickets"
}

func notesPath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID) + "/notes"
}

func ticketPath(projectID, ticketID string) string {
	return ticketsPath(projectID) + "/" + url.PathEscape(ticketID)
}

// do sends a JSON request and decodes a JSON response into out. A non-2xx
// status is returned as *Error.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	// path segments are already escaped by the callers
	rawPath := c.baseURL.EscapedPath() + path
	unescaped, err := url.PathUnescape(rawPath)
	if err != nil {
		return fmt.Errorf("invalid request path %q: %w", path, err)
	}
	endpoint := *c.baseURL
	endpoint.Path = unescaped
	endpoint.RawPath = rawPath
	if params != nil {
		endpoint.RawQuery = params.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)

	logging.Debug("sending api request",
		"method", method,
		"path", path,
		"request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := readError(resp, method, path)
		logging.Debug("api request failed",
			"method", method,
			"path", path,
			"request_id", requestID,
			"status_code", resp.StatusCode)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// readError parses an error body. The server reports failures as
// {"detail": "..."}; validation failures carry a list instead of a string.
func readError(resp *http.Response, method, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	apiErr := &Error{StatusCode: resp.StatusCode, Method: method, Path: path}

	var wire struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &wire) == nil && len(wire.Detail) > 0 {
		var detail string
		if json.Unmarshal(wire.Detail, &detail) == nil {
			apiErr.Detail = detail
		} else {
			apiErr.Detail = string(wire.Detail)
		}
		return apiErr
	}

	apiErr.Detail = strings.TrimSpace(string(body))
	return apiErr
}
