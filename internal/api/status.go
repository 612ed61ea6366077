package api

import (
	"context"
	"math"
	"net/http"

	"github.com/corvid-aero/groundstation/internal/drone"
	"github.com/corvid-aero/groundstation/internal/follow"
	"github.com/corvid-aero/groundstation/internal/geo"
	"github.com/corvid-aero/groundstation/internal/gps"
	"github.com/corvid-aero/groundstation/internal/httputil"
	"github.com/corvid-aero/groundstation/internal/stream"
	"github.com/corvid-aero/groundstation/internal/track"
	"github.com/corvid-aero/groundstation/internal/units"
)

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// statusResponse is the one-call dashboard view. The distance fields are
// person-to-drone and read zero until both ends have a position.
type statusResponse struct {
	TrackingActive   bool                `json:"tracking_active"`
	FollowMode       bool                `json:"follow_mode"`
	FollowState      follow.State        `json:"follow_state"`
	TargetElevation  float64             `json:"target_elevation"`
	TargetDistance   float64             `json:"target_distance"`
	UserLocation     latLon              `json:"user_location"`
	DroneLocation    latLon              `json:"drone_location"`
	DistanceMeters   float64             `json:"distance_meters"`
	DistanceFeet     float64             `json:"distance_feet"`
	UserHasLocation  bool                `json:"user_has_location"`
	DroneHasLocation bool                `json:"drone_has_location"`
	GPSSource        gps.SourceID        `json:"gps_source,omitempty"`
	GPSHealth        gps.Health          `json:"gps_health"`
	Lock             track.LockStatus    `json:"lock"`
	Stream           stream.Session      `json:"stream"`
	Drone            *drone.VehicleState `json:"drone,omitempty"`
	LastError        string              `json:"last_error,omitempty"`
	Units            string              `json:"units"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	snap := s.follow.Snapshot()

	resp := statusResponse{
		TrackingActive:  snap.Session != nil,
		FollowMode:      snap.State == follow.StateFollowing,
		FollowState:     snap.State,
		TargetElevation: defaultElevationM,
		TargetDistance:  defaultDistanceM,
		GPSHealth:       gps.HealthUnavailable,
		Lock:            s.tracker.Status(),
		Stream:          s.supervisor.Status(),
		LastError:       snap.LastError,
		Units:           s.units,
	}
	if snap.Session != nil {
		resp.TargetElevation = snap.Session.ElevationM
		resp.TargetDistance = snap.Session.DistanceM
	}

	reading, health := s.arbitrator.Active()
	resp.GPSHealth = health
	if health != gps.HealthUnavailable {
		resp.GPSSource = reading.Source
		resp.UserLocation = latLon{Lat: reading.Lat, Lon: reading.Lon}
		resp.UserHasLocation = true
	}

	if state, ok := s.vehicleState(r.Context()); ok {
		st := state
		resp.Drone = &st
		if state.HasFix {
			resp.DroneLocation = latLon{Lat: state.Position.Lat, Lon: state.Position.Lon}
			resp.DroneHasLocation = true
		}
	}

	if resp.UserHasLocation && resp.DroneHasLocation {
		meters := geo.Distance(
			geo.Point{Lat: resp.UserLocation.Lat, Lon: resp.UserLocation.Lon},
			geo.Point{Lat: resp.DroneLocation.Lat, Lon: resp.DroneLocation.Lon},
		)
		resp.DistanceMeters = round2(meters)
		resp.DistanceFeet = round2(units.MetersToFeet(meters))
	}

	httputil.WriteJSONOK(w, resp)
}

// vehicleState reports the latest telemetry, served from the background poll
// cache when one is wired and the snapshot is fresh, otherwise by a bounded
// driver read.
func (s *Server) vehicleState(ctx context.Context) (drone.VehicleState, bool) {
	if s.telemetry != nil {
		state, at, ok := s.telemetry.Latest()
		if !ok || s.clock.Since(at) > telemetryStaleAfter {
			return drone.VehicleState{}, false
		}
		return state, true
	}

	tctx, cancel := context.WithTimeout(ctx, telemetryTimeout)
	defer cancel()
	state, err := s.vehicle.CurrentState(tctx)
	return state, err == nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
