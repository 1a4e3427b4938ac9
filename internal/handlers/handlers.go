// Package handlers exposes the recognition operations as an HTTP JSON RPC
// surface. Business failures are always structured responses; the transport
// never aborts on a pipeline error.
package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/faceid/internal/audit"
	"github.com/example/faceid/internal/matcher"
)

// FaceService is the matcher contract consumed by the facade.
type FaceService interface {
	Enroll(ctx context.Context, subjectID, imageBase64 string) (bool, string)
	Identify(ctx context.Context, imageBase64 string) (string, float64, bool, string)
	Revoke(ctx context.Context, subjectID string) (bool, string)
}

// MetricsSource provides the aggregated identification summary.
type MetricsSource interface {
	Summary(ctx context.Context) (*audit.MetricsSummary, error)
}

// RegisterRequest enrolls a face image under a student ID. The ID is passed
// through as-is; an empty or duplicate ID simply overwrites.
type RegisterRequest struct {
	StudentID   string `json:"student_id"`
	ImageBase64 string `json:"image_base64"`
}

// RegisterResponse reports the enrollment outcome.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// IdentifyRequest matches an unknown face image against the enrolled set.
type IdentifyRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// IdentifyResponse reports the best match and the acceptance decision.
type IdentifyResponse struct {
	StudentID  string  `json:"student_id"`
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
}

// DeleteRequest revokes the template stored for a student ID.
type DeleteRequest struct {
	StudentID string `json:"student_id"`
}

// DeleteResponse reports the revocation outcome.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegisterRoutes wires the RPC endpoints to the gin router. The optional
// middleware guards the API group only; /health stays open for probes.
func RegisterRoutes(router *gin.Engine, svc FaceService, metrics MetricsSource, middleware ...gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1", middleware...)
	api.POST("/faces/register", registerFace(svc))
	api.POST("/faces/identify", identifyFace(svc))
	api.POST("/faces/delete", deleteFace(svc))
	api.GET("/metrics", metricsSummary(metrics))
}

func registerFace(svc FaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recoverServerError(c, func(msg string) interface{} {
			return RegisterResponse{Success: false, Message: msg}
		})

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, RegisterResponse{Success: false, Message: "invalid request body"})
			return
		}

		success, message := svc.Enroll(c.Request.Context(), req.StudentID, req.ImageBase64)
		c.JSON(http.StatusOK, RegisterResponse{Success: success, Message: message})
	}
}

func identifyFace(svc FaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recoverServerError(c, func(msg string) interface{} {
			return IdentifyResponse{StudentID: matcher.UnknownSubject, Message: msg}
		})

		var req IdentifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, IdentifyResponse{StudentID: matcher.UnknownSubject, Message: "invalid request body"})
			return
		}

		studentID, confidence, success, message := svc.Identify(c.Request.Context(), req.ImageBase64)
		c.JSON(http.StatusOK, IdentifyResponse{
			StudentID:  studentID,
			Confidence: confidence,
			Success:    success,
			Message:    message,
		})
	}
}

func deleteFace(svc FaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recoverServerError(c, func(msg string) interface{} {
			return DeleteResponse{Success: false, Message: msg}
		})

		var req DeleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, DeleteResponse{Success: false, Message: "invalid request body"})
			return
		}

		success, message := svc.Revoke(c.Request.Context(), req.StudentID)
		c.JSON(http.StatusOK, DeleteResponse{Success: success, Message: message})
	}
}

func metricsSummary(metrics MetricsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics not available"})
			return
		}
		summary, err := metrics.Summary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// recoverServerError is the facade safety net: any panic escaping a handler
// becomes a structured failure response instead of tearing down the
// connection. Server-side errors carry the "Server error" prefix so clients
// can tell them apart from business-rule rejections.
func recoverServerError(c *gin.Context, shape func(msg string) interface{}) {
	if r := recover(); r != nil {
		c.JSON(http.StatusOK, shape(fmt.Sprintf("Server error: %v", r)))
	}
}
