// Package publisher implements the Publisher collaborator: rendering the
// publish-ready payload and pushing it to the blogging platform.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/khalidmab/jobpress/internal/model"
)

// BloggerPublisher posts payloads to a Blogger-compatible HTTP API.
type BloggerPublisher struct {
	baseURL    string
	blogID     string
	apiKey     string
	httpClient *http.Client
}

// NewBloggerPublisher creates a publisher targeting the given blog.
func NewBloggerPublisher(baseURL, blogID, apiKey string, httpClient *http.Client) *BloggerPublisher {
	return &BloggerPublisher{
		baseURL:    baseURL,
		blogID:     blogID,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// postRequest mirrors the posts.insert request body.
type postRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Labels  []string `json:"labels,omitempty"`
}

// postResponse mirrors the fields of the created post we consume.
type postResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Publish creates one post and returns its identifier and permalink.
func (p *BloggerPublisher) Publish(ctx context.Context, payload model.PostPayload) (*model.PublishResult, error) {
	body, err := json.Marshal(postRequest{
		Title:   payload.Title,
		Content: payload.HTML,
		Labels:  payload.Labels,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal post request: %w", err)
	}

	url := fmt.Sprintf("%s/blogs/%s/posts", p.baseURL, p.blogID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read post response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("publisher returned %s", string(respBytes)),
		}
	}

	var post postResponse
	if err := json.Unmarshal(respBytes, &post); err != nil {
		return nil, fmt.Errorf("parse post response: %w", err)
	}
	if post.ID == "" {
		return nil, fmt.Errorf("publisher returned no post id")
	}

	return &model.PublishResult{
		PostID:    post.ID,
		Permalink: post.URL,
		Via:       "blogger",
	}, nil
}
