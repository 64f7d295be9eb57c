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

package detect

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net"
	"time"
)

// RemoteDetector talks to an object-detection server over TCP. The
// request is a JPEG-encoded image prefixed with its byte length as a
// big-endian uint32; the response is one line of JSON predictions.
// Model weights live in the server process, loaded once at its
// startup.
type RemoteDetector struct {
	addr    string
	timeout time.Duration
}

type prediction struct {
	Object     int       `json:"object"`
	ClassName  string    `json:"class_name"`
	Box        []float64 `json:"box"`
	Confidence float64   `json:"confidence"`
}

func NewRemoteDetector(conf Config) *RemoteDetector {
	return &RemoteDetector{
		addr:    conf.ServerAddr,
		timeout: conf.Timeout(),
	}
}

// Ping verifies the detection server is reachable. Called once at
// startup; an unreachable detector is the only fatal failure in the
// pipeline.
func (d *RemoteDetector) Ping() error {
	conn, err := net.DialTimeout("tcp", d.addr, d.timeout)
	if err != nil {
		return fmt.Errorf("detection server %s not reachable: %w", d.addr, err)
	}
	return conn.Close()
}

func (d *RemoteDetector) Detect(img image.Image, minConfidence float64) ([]Detection, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, nil); err != nil {
		return nil, fmt.Errorf("encoding detection request: %w", err)
	}

	conn, err := net.DialTimeout("tcp", d.addr, d.timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing detection server: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(d.timeout)); err != nil {
		return nil, err
	}

	sizeBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(sizeBytes, uint32(buf.Len()))
	if _, err := conn.Write(sizeBytes); err != nil {
		return nil, fmt.Errorf("sending image size: %w", err)
	}
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("sending image: %w", err)
	}

	respData, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading detection response: %w", err)
	}

	var preds []prediction
	if err := json.Unmarshal(respData, &preds); err != nil {
		return nil, fmt.Errorf("parsing detection response: %w", err)
	}

	detections := make([]Detection, 0, len(preds))
	for _, p := range preds {
		if p.Confidence < minConfidence {
			continue
		}
		var box image.Rectangle
		if len(p.Box) == 4 {
			box = image.Rect(int(p.Box[0]), int(p.Box[1]), int(p.Box[2]), int(p.Box[3]))
		}
		detections = append(detections, Detection{
			ClassID:    p.Object,
			Confidence: p.Confidence,
			Box:        box,
		})
	}
	return detections, nil
}
