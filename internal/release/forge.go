package release

import (
	"context"
	"fmt"
	"net/http"

	"resty.dev/v3"

	"github.com/Nr18/shipline/internal/artifact"
)

// ForgeHost publishes releases through a GitHub-style releases API.
type ForgeHost struct {
	client *resty.Client
	owner  string
	repo   string
}

// NewForgeHost builds a host against baseURL (e.g. https://api.github.com).
// The token authenticates every request.
func NewForgeHost(baseURL, owner, repo, token string) *ForgeHost {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Accept", "application/vnd.github+json")
	return &ForgeHost{client: client, owner: owner, repo: repo}
}

// Close releases the underlying HTTP client resources.
func (h *ForgeHost) Close() {
	h.client.Close()
}

type forgeRelease struct {
	ID         int64  `json:"id"`
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body,omitempty"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	UploadURL  string `json:"upload_url,omitempty"`
}

// Replace deletes any existing release for the tag, creates a fresh record
// and uploads its assets. The delete-then-create sequence makes a rolling
// tag like "latest" converge on a single record.
func (h *ForgeHost) Replace(ctx context.Context, rec Record, assets []artifact.File) error {
	if existing, ok, err := h.getByTag(ctx, rec.Tag); err != nil {
		return err
	} else if ok {
		if err := h.delete(ctx, existing.ID); err != nil {
			return err
		}
	}

	created, err := h.create(ctx, rec)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		if err := h.upload(ctx, created.ID, asset); err != nil {
			return err
		}
	}
	return nil
}

func (h *ForgeHost) getByTag(ctx context.Context, tag string) (forgeRelease, bool, error) {
	var out forgeRelease
	resp, err := h.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": h.owner, "repo": h.repo, "tag": tag}).
		SetResult(&out).
		Get("/repos/{owner}/{repo}/releases/tags/{tag}")
	if err != nil {
		return forgeRelease{}, false, fmt.Errorf("get release by tag: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return forgeRelease{}, false, nil
	}
	if resp.IsError() {
		return forgeRelease{}, false, fmt.Errorf("get release by tag: %s", resp.Status())
	}
	return out, true, nil
}

func (h *ForgeHost) delete(ctx context.Context, id int64) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": h.owner, "repo": h.repo}).
		SetPathParam("id", fmt.Sprintf("%d", id)).
		Delete("/repos/{owner}/{repo}/releases/{id}")
	if err != nil {
		return fmt.Errorf("delete release: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("delete release: %s", resp.Status())
	}
	return nil
}

func (h *ForgeHost) create(ctx context.Context, rec Record) (forgeRelease, error) {
	var out forgeRelease
	resp, err := h.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": h.owner, "repo": h.repo}).
		SetBody(forgeRelease{
			TagName:    rec.Tag,
			Name:       rec.Title,
			Body:       rec.Notes,
			Draft:      rec.Draft,
			Prerelease: rec.Prerelease,
		}).
		SetResult(&out).
		Post("/repos/{owner}/{repo}/releases")
	if err != nil {
		return forgeRelease{}, fmt.Errorf("create release: %w", err)
	}
	if resp.IsError() {
		return forgeRelease{}, fmt.Errorf("create release: %s", resp.Status())
	}
	return out, nil
}

func (h *ForgeHost) upload(ctx context.Context, releaseID int64, asset artifact.File) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": h.owner, "repo": h.repo}).
		SetPathParam("id", fmt.Sprintf("%d", releaseID)).
		SetQueryParam("name", asset.Name).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(asset.Data).
		Post("/repos/{owner}/{repo}/releases/{id}/assets")
	if err != nil {
		return fmt.Errorf("upload asset %q: %w", asset.Name, err)
	}
	if resp.IsError() {
		return fmt.Errorf("upload asset %q: %s", asset.Name, resp.Status())
	}
	return nil
}

var _ Host = (*ForgeHost)(nil)
