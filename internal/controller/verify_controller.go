package controller

import (
	"net/http"

	"github.com/IsaacPaez/drivingschool-sub001/internal/dto"
	"github.com/IsaacPaez/drivingschool-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type VerifyController struct {
	Service *service.VerifyService
}

func NewVerifyController(s *service.VerifyService) *VerifyController {
	return &VerifyController{Service: s}
}

// POST /verify/send — público
func (ctl *VerifyController) SendCode(c *gin.Context) {
	var req dto.SendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctl.Service.SendCode(req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "código enviado"})
}

// POST /verify/check — público
func (ctl *VerifyController) CheckCode(c *gin.Context) {
	var req dto.CheckCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctl.Service.CheckCode(req.Email, req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}
