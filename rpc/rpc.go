package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/models"
	"github.com/wfunc/matchserver/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the caller
// through net/rpc before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// StatsQuery exposes ledger views over net/rpc for operational tooling.
// Methods follow the net/rpc signature rules: exported, pointer reply, error
// return.
type StatsQuery struct {
	stats *services.StatsService
}

func NewStatsQuery(stats *services.StatsService) *StatsQuery {
	return &StatsQuery{stats: stats}
}

type LeaderboardArgs struct {
	Limit int
}

type LeaderboardReply struct {
	Entries []models.LeaderboardEntry
}

func (q *StatsQuery) GetLeaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	entries, err := q.stats.Leaderboard(args.Limit)
	if err != nil {
		return err
	}
	reply.Entries = entries
	return nil
}

type PlayerRecordArgs struct {
	Username string
}

type PlayerRecordReply struct {
	Record models.LeaderboardEntry
}

func (q *StatsQuery) GetPlayerRecord(args *PlayerRecordArgs, reply *PlayerRecordReply) error {
	record, err := q.stats.PlayerRecord(args.Username)
	if err != nil {
		return err
	}
	reply.Record = record
	return nil
}
