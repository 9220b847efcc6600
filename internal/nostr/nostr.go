package nostr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/publish"
	"github.com/gorilla/websocket"
)

// KindTextNote is a NIP-01 short text note.
const KindTextNote = 1

// Event represents a Nostr event
type Event struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Client signs text notes with one key and sends them to one relay.
type Client struct {
	RelayURL string
	Timeout  time.Duration

	key    *btcec.PrivateKey
	pubkey string
	now    func() time.Time
}

func New(privKeyHex, relayURL string) (*Client, error) {
	privKeyBytes, err := hex.DecodeString(strings.TrimSpace(privKeyHex))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privKeyBytes) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(privKeyBytes))
	}
	privKey, pub := btcec.PrivKeyFromBytes(privKeyBytes)
	return &Client{
		RelayURL: relayURL,
		Timeout:  15 * time.Second,
		key:      privKey,
		pubkey:   hex.EncodeToString(schnorr.SerializePubKey(pub)),
		now:      time.Now,
	}, nil
}

// PublicKey returns the x-only public key in hex.
func (c *Client) PublicKey() string { return c.pubkey }

// NewEvent builds and signs a kind-1 note.
func (c *Client) NewEvent(content string, tags [][]string) (*Event, error) {
	if tags == nil {
		tags = [][]string{}
	}
	event := &Event{
		Pubkey:    c.pubkey,
		CreatedAt: c.now().Unix(),
		Kind:      KindTextNote,
		Tags:      tags,
		Content:   content,
	}
	id, err := ComputeEventID(event)
	if err != nil {
		return nil, err
	}
	event.ID = id

	idBytes, _ := hex.DecodeString(id)
	sig, err := schnorr.Sign(c.key, idBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to sign event with Schnorr: %w", err)
	}
	event.Sig = hex.EncodeToString(sig.Serialize())
	return event, nil
}

// ComputeEventID hashes the NIP-01 serialization of the event.
func ComputeEventID(event *Event) (string, error) {
	serialized, err := json.Marshal([]interface{}{
		0,
		event.Pubkey,
		event.CreatedAt,
		event.Kind,
		event.Tags,
		event.Content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to serialize event for ID: %w", err)
	}
	hash := sha256.Sum256(serialized)
	return hex.EncodeToString(hash[:]), nil
}

// Send delivers the event and waits for the relay's OK message.
func (c *Client) Send(ctx context.Context, event *Event) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: c.Timeout}
	ws, _, err := dialer.DialContext(ctx, c.RelayURL, nil)
	if err != nil {
		return fmt.Errorf("error connecting to Nostr relay: %w", err)
	}
	defer ws.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
		_ = ws.SetWriteDeadline(deadline)
	}

	if err := ws.WriteJSON([]interface{}{"EVENT", event}); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}

	for {
		var msg []json.RawMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read response from relay: %w", err)
		}
		if len(msg) == 0 {
			continue
		}
		var label string
		_ = json.Unmarshal(msg[0], &label)

		switch label {
		case "NOTICE":
			var notice string
			if len(msg) > 1 {
				_ = json.Unmarshal(msg[1], &notice)
			}
			logger.Warn("Relay notice", "relay", c.RelayURL, "notice", notice)
		case "OK":
			if len(msg) < 3 {
				return fmt.Errorf("malformed OK from relay")
			}
			var id, reason string
			var accepted bool
			_ = json.Unmarshal(msg[1], &id)
			_ = json.Unmarshal(msg[2], &accepted)
			if len(msg) > 3 {
				_ = json.Unmarshal(msg[3], &reason)
			}
			if id != event.ID {
				continue
			}
			if accepted {
				return nil
			}
			return rejection(reason)
		}
	}
}

// rejection maps the machine-readable prefixes of a relay OK message.
func rejection(reason string) error {
	switch {
	case strings.HasPrefix(reason, "rate-limited:"):
		return fmt.Errorf("relay: %s: %w", reason, publish.ErrRateLimited)
	case strings.HasPrefix(reason, "duplicate:"):
		return publish.ErrDuplicate
	}
	return fmt.Errorf("relay rejected event: %s", reason)
}

// Publisher adapts Client to publish.Publisher.
type Publisher struct {
	Client *Client
}

func (p *Publisher) Name() string { return "nostr" }

// Verify has nothing to authenticate against; it reports the public key.
func (p *Publisher) Verify(ctx context.Context) (string, error) {
	return p.Client.PublicKey(), nil
}

// Publish sends post as a note. An image URL is appended to the content;
// uploaded bytes cannot be carried by a relay and are dropped.
func (p *Publisher) Publish(ctx context.Context, post publish.Post) (string, error) {
	content := post.Text
	var tags [][]string
	if post.Image != nil && post.Image.URL != "" {
		content += "\n" + post.Image.URL
		tags = append(tags, []string{"r", post.Image.URL})
	}
	if post.ReplyTo != "" {
		tags = append(tags, []string{"e", post.ReplyTo, "", "reply"})
	}

	event, err := p.Client.NewEvent(content, tags)
	if err != nil {
		return "", err
	}
	if err := p.Client.Send(ctx, event); err != nil {
		return "", err
	}
	return event.ID, nil
}
