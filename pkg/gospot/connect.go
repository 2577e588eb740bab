package gospot

import "sync"

const defaultDealerURL = "wss://gae2-dealer.spotify.com/"

// ConnectConfig carries the presentation of this device to the connect
// backend. Mutate it before NewSpirc; NewSpirc copies it.
type ConnectConfig struct {
	mu            sync.Mutex
	name          string
	deviceType    DeviceType
	initialVolume uint16
	dealerURL     string
}

// NewConnectConfig returns a config with defaults: name "gospot", speaker
// device type, half volume.
func NewConnectConfig() *ConnectConfig {
	return &ConnectConfig{
		name:          "gospot",
		deviceType:    DeviceTypeSpeaker,
		initialVolume: MaxVolume / 2,
		dealerURL:     defaultDealerURL,
	}
}

// SetName sets the device name shown on other clients.
func (c *ConnectConfig) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name != "" {
		c.name = name
	}
}

// SetDeviceType sets the advertised device class.
func (c *ConnectConfig) SetDeviceType(t DeviceType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deviceType = t
}

// SetInitialVolume sets the volume the session starts at.
func (c *ConnectConfig) SetInitialVolume(volume uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialVolume = volume
}

// SetDealerURL overrides the backend websocket endpoint.
func (c *ConnectConfig) SetDealerURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if url != "" {
		c.dealerURL = url
	}
}

func (c *ConnectConfig) snapshot() (name string, t DeviceType, volume uint16, dealerURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name, c.deviceType, c.initialVolume, c.dealerURL
}

// Close releases the config. Idempotent and nil-safe.
func (c *ConnectConfig) Close() error { return nil }

// LoadRequestOptions tunes LoadTracks. Zero value: do not start playing,
// start at the beginning.
type LoadRequestOptions struct {
	mu           sync.Mutex
	startPlaying bool
	seekToMS     uint32
}

// NewLoadRequestOptions returns options with defaults.
func NewLoadRequestOptions() *LoadRequestOptions {
	return &LoadRequestOptions{}
}

// SetStartPlaying makes the load begin playback immediately.
func (o *LoadRequestOptions) SetStartPlaying(start bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startPlaying = start
}

// SetSeekTo sets the initial playhead position.
func (o *LoadRequestOptions) SetSeekTo(positionMS uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seekToMS = positionMS
}

func (o *LoadRequestOptions) snapshot() (startPlaying bool, seekToMS uint32) {
	if o == nil {
		return false, 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startPlaying, o.seekToMS
}

// Close releases the options. Idempotent and nil-safe.
func (o *LoadRequestOptions) Close() error { return nil }
