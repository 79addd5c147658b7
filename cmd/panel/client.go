package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
	"github.com/matt-g-everett/shuffler/stream"
)

// client talks to the server: commands over MQTT, settings and presets over
// HTTP.
type client struct {
	base   string
	http   *http.Client
	mqtt   mqtt.Client
	topics stream.Topics

	mu       sync.Mutex
	statuses map[string]stream.Status
	seen     map[string]time.Time
}

func newClient(base string, topics stream.Topics) *client {
	c := new(client)
	c.base = base
	c.http = &http.Client{Timeout: 5 * time.Second}
	c.topics = topics
	c.statuses = make(map[string]stream.Status)
	c.seen = make(map[string]time.Time)
	return c
}

func (c *client) handleOnConnect(m mqtt.Client) {
	token := m.Subscribe(c.topics.StatusWildcard(), 1, c.handleStatus)
	token.Wait()
}

func (c *client) handleStatus(m mqtt.Client, msg mqtt.Message) {
	var st stream.Status
	if err := json.Unmarshal(msg.Payload(), &st); err != nil || st.Instance == "" {
		return
	}
	c.mu.Lock()
	c.statuses[st.Instance] = st
	c.seen[st.Instance] = time.Now()
	c.mu.Unlock()
}

// instances returns the ids reported so far, sorted.
func (c *client) instances() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.statuses))
	for id := range c.statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *client) status(id string) (stream.Status, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.statuses[id]
	return st, c.seen[id], ok
}

func (c *client) send(id string, cmd stream.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	token := c.mqtt.Publish(c.topics.CommandTopic(id), 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", id)
	}
	return token.Error()
}

func (c *client) get(path string) ([]byte, error) {
	res, err := c.http.Get(c.base + path)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", path, res.Status)
	}
	return body, nil
}

func (c *client) settings(id string) ([]byte, error) {
	return c.get("/api/instances/" + url.PathEscape(id) + "/settings")
}

func (c *client) presets() ([]string, error) {
	body, err := c.get("/api/presets")
	if err != nil {
		return nil, err
	}
	var out struct {
		Presets []string `json:"presets"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out.Presets, nil
}

func (c *client) exportTo(path string) error {
	body, err := c.get("/api/settings/export")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0644)
}

func (c *client) importFrom(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Post(c.base+"/api/settings/import", "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var out struct {
		Imported []string `json:"imported"`
		Error    string   `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("import failed: %s", out.Error)
	}
	return out.Imported, nil
}
