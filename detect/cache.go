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

// ResultCache holds the result of the most recent detection cycle,
// keyed by region fingerprint. It exists for exact-frame-repeat
// scenarios (static scenes, paused streams); a single entry is all
// that helps there. Not safe for concurrent use; callers guard it with
// the pipeline mutex.
type ResultCache struct {
	fingerprint string
	result      Result
	valid       bool
}

// Lookup returns the cached result when the fingerprint matches and
// the region size is unchanged. A region size change invalidates the
// entry even on a fingerprint match, so a mid-run config change can
// never serve a stale result.
func (c *ResultCache) Lookup(fingerprint string, regionWidth, regionHeight int) (Result, bool) {
	if !c.valid || fingerprint == "" || c.fingerprint != fingerprint {
		return Result{}, false
	}
	if c.result.RegionWidth != regionWidth || c.result.RegionHeight != regionHeight {
		return Result{}, false
	}
	return c.result, true
}

// Store replaces the single cache entry. Results without a fingerprint
// are not cacheable and clear the entry instead.
func (c *ResultCache) Store(result Result) {
	if result.Fingerprint == "" {
		c.valid = false
		return
	}
	c.fingerprint = result.Fingerprint
	c.result = result
	c.valid = true
}
