package server

import (
	"fmt"
	"net/http"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fabian4/Soft-Demo/pkg/echo"
)

// handleStats serves the echo counters as protobuf JSON by default,
// binary protobuf with ?format=proto or Prometheus text with
// ?format=prometheus.
func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()

	format := r.URL.Query().Get("format")
	if format == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(formatPrometheusStats(snap)))
		return
	}

	msg, err := structpb.NewStruct(snap.AsMap())
	if err != nil {
		http.Error(w, fmt.Sprintf("encode stats: %v", err), http.StatusInternalServerError)
		return
	}

	var body []byte
	switch format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		body, err = protojson.MarshalOptions{UseProtoNames: true}.Marshal(msg)
	case "proto":
		w.Header().Set("Content-Type", "application/x-protobuf")
		body, err = proto.Marshal(msg)
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("encode stats: %v", err), http.StatusInternalServerError)
		return
	}
	w.Write(body)
}

func formatPrometheusStats(snap echo.Snapshot) string {
	return fmt.Sprintf(`# HELP udp_echo_datagrams_in_total Datagrams received
# TYPE udp_echo_datagrams_in_total counter
udp_echo_datagrams_in_total %d

# HELP udp_echo_datagrams_out_total Datagrams sent, including end signals
# TYPE udp_echo_datagrams_out_total counter
udp_echo_datagrams_out_total %d

# HELP udp_echo_bytes_in_total Payload bytes received
# TYPE udp_echo_bytes_in_total counter
udp_echo_bytes_in_total %d

# HELP udp_echo_bytes_out_total Payload bytes sent
# TYPE udp_echo_bytes_out_total counter
udp_echo_bytes_out_total %d

# HELP udp_echo_end_signals_total Zero-length datagrams sent to end an exchange
# TYPE udp_echo_end_signals_total counter
udp_echo_end_signals_total %d

# HELP udp_echo_write_errors_total Failed writes
# TYPE udp_echo_write_errors_total counter
udp_echo_write_errors_total %d

# HELP udp_echo_peers Distinct peers seen
# TYPE udp_echo_peers gauge
udp_echo_peers %d

# HELP udp_echo_uptime_seconds Seconds since the server started
# TYPE udp_echo_uptime_seconds gauge
udp_echo_uptime_seconds %.3f
`,
		snap.DatagramsIn,
		snap.DatagramsOut,
		snap.BytesIn,
		snap.BytesOut,
		snap.EndSignals,
		snap.WriteErrors,
		snap.Peers,
		snap.Uptime.Seconds(),
	)
}
