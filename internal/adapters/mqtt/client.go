// Package mqtt is the paho client adapter the CLI and the bridge module
// use: correlated command/reply plumbing plus retained snapshot reads.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/gospot-dev/gospot/pkg/remote"
)

// Options configures the MQTT client.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLSCA     string
	TLSCert   string
	TLSKey    string
	TopicBase string
	Timeout   time.Duration
}

// Client connects to the broker and speaks the remote protocol.
type Client struct {
	client     paho.Client
	clientID   string
	replyTopic string
	topicBase  string
	timeout    time.Duration

	mu            sync.Mutex
	replyHandlers map[string]chan remote.ReplyEnvelope
}

// NewClient creates and connects an MQTT client.
func NewClient(opts Options) (*Client, error) {
	if opts.TopicBase == "" {
		opts.TopicBase = remote.BaseTopic
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.ClientID == "" {
		opts.ClientID = "gospot-" + uuid.NewString()[:8]
	}

	c := &Client{
		clientID:      opts.ClientID,
		replyTopic:    remote.TopicReply(opts.TopicBase, opts.ClientID),
		topicBase:     opts.TopicBase,
		timeout:       opts.Timeout,
		replyHandlers: map[string]chan remote.ReplyEnvelope{},
	}

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(c.replyTopic, 1, c.handleReply)
		token.Wait()
	})

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	tlsConfig, err := buildTLSConfig(opts.TLSCA, opts.TLSCert, opts.TLSKey)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		clientOpts.SetTLSConfig(tlsConfig)
	}

	c.client = paho.NewClient(clientOpts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if token := c.client.Subscribe(c.replyTopic, 1, c.handleReply); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return c, nil
}

// ReplyTopic returns the topic this client receives replies on.
func (c *Client) ReplyTopic() string {
	return c.replyTopic
}

// TopicBase returns the topic base the client was configured with.
func (c *Client) TopicBase() string {
	return c.topicBase
}

// NewEnvelope stamps a command envelope with id, timestamp, sender and
// reply topic.
func (c *Client) NewEnvelope(cmdType string, body any) (remote.CommandEnvelope, error) {
	env, err := remote.NewCommand(cmdType, body)
	if err != nil {
		return remote.CommandEnvelope{}, err
	}
	env.ID = uuid.NewString()
	env.TS = time.Now().Unix()
	env.From = c.clientID
	env.ReplyTo = c.replyTopic
	return env, nil
}

// PublishCommand publishes a command to a device and waits for its reply.
func (c *Client) PublishCommand(ctx context.Context, deviceID string, cmd remote.CommandEnvelope) (remote.ReplyEnvelope, error) {
	req, err := json.Marshal(cmd)
	if err != nil {
		return remote.ReplyEnvelope{}, fmt.Errorf("marshal command: %w", err)
	}

	replyCh := make(chan remote.ReplyEnvelope, 1)
	c.mu.Lock()
	c.replyHandlers[cmd.ID] = replyCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.replyHandlers, cmd.ID)
		c.mu.Unlock()
	}()

	topic := remote.TopicCommands(c.topicBase, deviceID)
	if token := c.client.Publish(topic, 1, false, req); token.Wait() && token.Error() != nil {
		return remote.ReplyEnvelope{}, token.Error()
	}

	select {
	case <-ctx.Done():
		return remote.ReplyEnvelope{}, ctx.Err()
	case reply := <-replyCh:
		return reply, nil
	case <-time.After(c.timeout):
		return remote.ReplyEnvelope{}, errors.New("timeout waiting for reply")
	}
}

// GetSnapshot reads the retained snapshot of a device.
func (c *Client) GetSnapshot(ctx context.Context, deviceID string) (remote.Snapshot, error) {
	snapCh := make(chan remote.Snapshot, 1)
	handler := func(_ paho.Client, msg paho.Message) {
		var snap remote.Snapshot
		if err := json.Unmarshal(msg.Payload(), &snap); err != nil {
			return
		}
		select {
		case snapCh <- snap:
		default:
		}
	}

	topic := remote.TopicSnapshot(c.topicBase, deviceID)
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return remote.Snapshot{}, token.Error()
	}
	defer func() {
		token := c.client.Unsubscribe(topic)
		token.Wait()
	}()

	select {
	case <-ctx.Done():
		return remote.Snapshot{}, ctx.Err()
	case snap := <-snapCh:
		return snap, nil
	case <-time.After(c.timeout):
		return remote.Snapshot{}, errors.New("timeout waiting for snapshot")
	}
}

// Subscribe registers a raw message handler on a topic.
func (c *Client) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := c.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Publish publishes a raw payload.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	token := c.client.Publish(topic, 1, retained, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.client.Disconnect(250)
}

func (c *Client) handleReply(_ paho.Client, msg paho.Message) {
	var reply remote.ReplyEnvelope
	if err := json.Unmarshal(msg.Payload(), &reply); err != nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.replyHandlers[reply.ID]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- reply:
	default:
	}
}

func buildTLSConfig(caPath, certPath, keyPath string) (*tls.Config, error) {
	if caPath == "" && certPath == "" && keyPath == "" {
		return nil, nil
	}

	config := &tls.Config{}
	if caPath != "" {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to parse CA bundle")
		}
		config.RootCAs = pool
	}

	if certPath != "" || keyPath != "" {
		if certPath == "" || keyPath == "" {
			return nil, errors.New("both tls cert and key are required")
		}
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, err
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}
