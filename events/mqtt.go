// parkingcam - watch a parking spot over a video stream and keep a
// stable occupancy signal
//  Copyright (C) 2024, parkingcam contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttConnectTimeout = 10 * time.Second

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // host:port
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client-id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Topic:    "parkingcam/occupancy",
		ClientID: "parkingcam",
	}
}

func (conf *MQTTConfig) Validate() error {
	if !conf.Enabled {
		return nil
	}
	if conf.Broker == "" {
		return errors.New("mqtt requires a broker address")
	}
	if conf.Topic == "" {
		return errors.New("mqtt requires a topic")
	}
	if conf.QoS < 0 || conf.QoS > 2 {
		return errors.New("mqtt qos must be 0, 1 or 2")
	}
	return nil
}

// MQTTNotifier publishes occupancy transitions as JSON to a single
// topic. The connection is held open for the life of the process; the
// paho client reconnects on its own after broker restarts.
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
	qos    byte
}

type mqttPayload struct {
	State      string `json:"state"`
	Occupied   bool   `json:"occupied"`
	TrueCount  int    `json:"trueCount"`
	HistoryLen int    `json:"historyLen"`
	Timestamp  string `json:"timestamp"`
}

func NewMQTTNotifier(conf MQTTConfig) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s", conf.Broker)).
		SetClientID(conf.ClientID).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true)
	if conf.Username != "" && conf.Password != "" {
		opts.SetUsername(conf.Username)
		opts.SetPassword(conf.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}
	return &MQTTNotifier{
		client: client,
		topic:  conf.Topic,
		qos:    byte(conf.QoS),
	}, nil
}

func (n *MQTTNotifier) Notify(e Event) error {
	payload, err := json.Marshal(mqttPayload{
		State:      e.State(),
		Occupied:   e.Occupied,
		TrueCount:  e.TrueCount,
		HistoryLen: e.HistoryLen,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	token := n.client.Publish(n.topic, n.qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", n.topic, token.Error())
	}
	return nil
}

func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}
