package api

import (
	"bytes"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/thereceipt/printbridge/internal/command"
	"github.com/thereceipt/printbridge/internal/printer"
	"github.com/thereceipt/printbridge/internal/renderer"
	"github.com/thereceipt/printbridge/pkg/receiptformat"
	"go.uber.org/zap"
)

// DefaultPreviewPaper is the paper width used when ?paper is absent
const DefaultPreviewPaper = "80mm"

// printReceiptRequest is a payload with an optional target profile
type printReceiptRequest struct {
	receiptformat.Payload
	PrinterID *uint `json:"printer_id"`
}

// printStatus maps a print result to its HTTP status
func printStatus(res command.PrintResult) int {
	if res.Success {
		return 200
	}
	switch res.Code {
	case command.CodeNotFound:
		return 404
	case printer.CodeInvalidConfiguration, printer.CodeUnsupportedTransport, command.CodeInvalidPayload:
		return 400
	case command.CodeInternal:
		return 500
	default:
		return 503
	}
}

// handlePrintReceipt prints a receipt on the given or default printer
func (s *Server) handlePrintReceipt(c *gin.Context) {
	var req printReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, command.PrintResult{
			Success: false,
			Message: "invalid request body: " + err.Error(),
			Code:    command.CodeInvalidPayload,
		})
		return
	}

	res := s.orchestrator.PrintReceipt(c.Request.Context(), &req.Payload, req.PrinterID)
	c.JSON(printStatus(res), res)
}

// handleTestPrint prints the sample receipt. The body is optional.
func (s *Server) handleTestPrint(c *gin.Context) {
	var req struct {
		PrinterID *uint `json:"printer_id"`
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(400, command.PrintResult{Success: false, Message: "failed to read request body"})
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := binding.JSON.BindBody(body, &req); err != nil {
			c.JSON(400, command.PrintResult{
				Success: false,
				Message: "invalid request body: " + err.Error(),
			})
			return
		}
	}

	res := s.orchestrator.TestPrint(c.Request.Context(), req.PrinterID)
	c.JSON(printStatus(res), res)
}

// handlePreview renders a payload to PNG without touching a printer
func (s *Server) handlePreview(c *gin.Context) {
	var payload receiptformat.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := receiptformat.Validate(&payload); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	seq := s.orchestrator.Render(&payload)

	var buf bytes.Buffer
	if err := renderer.WritePNG(&buf, seq, c.DefaultQuery("paper", DefaultPreviewPaper)); err != nil {
		s.log.Error("preview failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "failed to render preview"})
		return
	}

	c.Data(200, "image/png", buf.Bytes())
}

// handleGetJobs returns recent print attempts
func (s *Server) handleGetJobs(c *gin.Context) {
	c.JSON(200, gin.H{"jobs": s.orchestrator.Jobs().GetAllJobs()})
}

// handleGetJob returns a specific print attempt
func (s *Server) handleGetJob(c *gin.Context) {
	job := s.orchestrator.Jobs().GetJob(c.Param("id"))
	if job == nil {
		c.JSON(404, gin.H{"error": "job not found"})
		return
	}

	c.JSON(200, job)
}
