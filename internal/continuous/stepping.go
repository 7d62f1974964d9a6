package continuous

import "github.com/sonarhub/sonarfleetd/internal/device"

// stepAngle advances a Ping360 software-stepped sweep one step (spec
// §4.5 software strategy). cur/dir describe the current position and
// direction of travel within cfg; the returned position and direction
// never leave [0,399] (full circle) or [start,stop] (bounded sweep).
func stepAngle(cfg device.Ping360Config, cur uint16, dir int8, step uint16) (next uint16, nextDir int8) {
	if cfg.FullCircle() {
		if uint32(cur)+uint32(step) >= 400 {
			return 0, 1
		}
		return cur + step, 1
	}

	if dir >= 0 {
		if uint32(cur)+uint32(step) > uint32(cfg.StopAngle) {
			return cfg.StopAngle, -1
		}
		return cur + step, 1
	}

	if int32(cur)-int32(step) <= int32(cfg.StartAngle) {
		return cfg.StartAngle, 1
	}
	return cur - step, -1
}
