package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Ali-hajj/youware-source-code/internal/license"
	"github.com/Ali-hajj/youware-source-code/internal/store"
	"github.com/Ali-hajj/youware-source-code/internal/util"
)

// Config defines server dependencies.
type Config struct {
	DBPath         string
	SeedPath       string
	AllowedOrigins []string
	SilentDB       bool
	Now            func() time.Time
}

// Server answers license checks from the local store.
type Server struct {
	db             *store.Database
	allowedOrigins []string
	now            func() time.Time
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	if seed := strings.TrimSpace(cfg.SeedPath); seed != "" {
		count, err := store.LoadSeed(db, seed)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"seed":     seed,
			"licenses": count,
		}).Info("loaded license seed")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Server{
		db:             db,
		allowedOrigins: cfg.AllowedOrigins,
		now:            now,
	}, nil
}

// Close releases the database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/licenses/check", s.handleCheck)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.db.CountLicenses()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "licenses": count})
}

func (s *Server) handleCheck(c *gin.Context) {
	timer := util.StartTimer()

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Serial == nil {
		c.JSON(http.StatusBadRequest, rejected("Serial is required"))
		return
	}
	serial := strings.TrimSpace(*req.Serial)
	entry := logrus.WithField("serial", serial)

	record, err := s.db.FindLicenseBySerial(serial)
	if errors.Is(err, store.ErrLicenseNotFound) {
		entry.Info("license check: unknown serial")
		c.JSON(http.StatusNotFound, rejected("Invalid serial"))
		return
	}
	if err != nil {
		entry.WithError(err).Error("license lookup failed")
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	if !record.IsActive() {
		entry.WithField("status", record.Status).Info("license check: inactive")
		resp := rejected("License inactive")
		resp.Status = record.Status
		c.JSON(http.StatusForbidden, resp)
		return
	}

	expiresAt, err := license.ParseExpiry(record.ExpiryDate)
	if err != nil {
		entry.WithError(err).Warn("stored expiry date is invalid")
		c.JSON(http.StatusInternalServerError, rejected("Invalid expiry date"))
		return
	}

	if license.Expired(s.now(), expiresAt) {
		if err := s.db.MarkLicenseExpired(record.ID); err != nil {
			entry.WithError(err).Warn("mark license expired")
		}
		entry.WithField("expiry", record.ExpiryDate).Info("license check: expired")
		resp := rejected("License expired")
		resp.Expiry = record.ExpiryDate
		c.JSON(http.StatusForbidden, resp)
		return
	}

	entry.WithFields(logrus.Fields{
		"plan":       record.PlanType,
		"expiry":     record.ExpiryDate,
		"elapsed_ms": timer.ElapsedMs(),
	}).Info("license check: valid")
	c.JSON(http.StatusOK, AcceptedFromModel(*record))
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"valid": false, "error": err.Error()})
}
