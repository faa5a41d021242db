package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/yaziris/discured/internal/domain"
)

const defaultTimeout = 10 * time.Second

// DiscordPlatform drives role membership and replies over the chat
// service's REST API. Gateway connection handling lives with whatever
// feeds submissions in; this adapter only issues the authenticated
// HTTP calls.
type DiscordPlatform struct {
	client  *http.Client
	baseURL string
	token   string
	guildID string
	roleID  string
}

func NewDiscordPlatform(conf domain.Chat) *DiscordPlatform {
	return &DiscordPlatform{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: conf.APIEndpoint,
		token:   conf.Token,
		guildID: conf.GuildID,
		roleID:  conf.RoleID,
	}
}

func (p *DiscordPlatform) HasRole(ctx context.Context, chatID string) (bool, error) {
	var member struct {
		Roles []string `json:"roles"`
	}
	path := fmt.Sprintf("/guilds/%s/members/%s", p.guildID, url.PathEscape(chatID))
	if err := p.do(ctx, http.MethodGet, path, nil, &member); err != nil {
		return false, errors.Wrap(err, "failed to fetch member")
	}
	for _, role := range member.Roles {
		if role == p.roleID {
			return true, nil
		}
	}
	return false, nil
}

func (p *DiscordPlatform) GrantRole(ctx context.Context, chatID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", p.guildID, url.PathEscape(chatID), p.roleID)
	if err := p.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return errors.Wrap(err, "failed to grant role")
	}
	return nil
}

func (p *DiscordPlatform) RevokeRole(ctx context.Context, chatID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", p.guildID, url.PathEscape(chatID), p.roleID)
	if err := p.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return errors.Wrap(err, "failed to revoke role")
	}
	return nil
}

func (p *DiscordPlatform) Reply(ctx context.Context, channelID, messageID, text string) error {
	body := map[string]any{
		"content": text,
	}
	if messageID != "" {
		body["message_reference"] = map[string]string{
			"message_id": messageID,
		}
	}
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	if err := p.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return errors.Wrap(err, "failed to send reply")
	}
	return nil
}

func (p *DiscordPlatform) do(ctx context.Context, method, path string, body, result any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, payload)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bot "+p.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to perform request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(snippet))
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
