package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"tgcasino/models"
	"tgcasino/service"
)

var minBet = decimal.NewFromInt(1)

// Handler serves the game endpoints
type Handler struct {
	dice  service.DiceService
	mines service.MinesService
	slots service.SlotService
}

// NewHandler creates a handler over the game services
func NewHandler(dice service.DiceService, mines service.MinesService, slots service.SlotService) *Handler {
	return &Handler{dice: dice, mines: mines, slots: slots}
}

type dicePlayRequest struct {
	Bet    decimal.Decimal      `json:"bet"`
	Chance int                  `json:"chance" binding:"required,min=1,max=99"`
	Type   models.DiceDirection `json:"type" binding:"required,oneof=over under"`
}

type minesStartRequest struct {
	Bet   decimal.Decimal `json:"bet"`
	Mines int             `json:"mines" binding:"required,min=1,max=24"`
}

type minesPickRequest struct {
	CellID *int `json:"cellId" binding:"required,min=0,max=24"`
}

type slotPlayRequest struct {
	Amount    int64           `json:"amount" binding:"required,min=1"`
	Mode      models.SlotMode `json:"mode" binding:"required,oneof=NORMAL ANTE BONUS"`
	SessionID string          `json:"sessionID" binding:"required"`
	Currency  string          `json:"currency" binding:"required"`
}

func checkBet(c *gin.Context, bet decimal.Decimal) bool {
	if bet.LessThan(minBet) {
		Error(c, fmt.Errorf("%w: bet must be at least %s", service.ErrInvalidInput, minBet))
		return false
	}
	return true
}

func (h *Handler) playDice(c *gin.Context) {
	var req dicePlayRequest
	if !bindJSON(c, &req) || !checkBet(c, req.Bet) {
		return
	}

	result, err := h.dice.Play(c.Request.Context(), userID(c), req.Bet, req.Chance, req.Type)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, result)
}

func (h *Handler) minesState(c *gin.Context) {
	state, err := h.mines.GetState(c.Request.Context(), userID(c))
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, state)
}

func (h *Handler) startMines(c *gin.Context) {
	var req minesStartRequest
	if !bindJSON(c, &req) || !checkBet(c, req.Bet) {
		return
	}

	state, err := h.mines.Start(c.Request.Context(), userID(c), req.Bet, req.Mines)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, state)
}

func (h *Handler) pickMines(c *gin.Context) {
	var req minesPickRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.mines.Pick(c.Request.Context(), userID(c), *req.CellID)
	if err != nil {
		Error(c, err)
		return
	}
	if result.Loss != nil {
		OK(c, result.Loss)
		return
	}
	OK(c, result.State)
}

func (h *Handler) cashoutMines(c *gin.Context) {
	result, err := h.mines.Cashout(c.Request.Context(), userID(c))
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, result)
}

func (h *Handler) minesMultipliers(c *gin.Context) {
	var req minesStartRequest
	if !bindJSON(c, &req) || !checkBet(c, req.Bet) {
		return
	}

	ladder, err := h.mines.GetMultiplierLadder(c.Request.Context(), req.Bet, req.Mines)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"multipliers": ladder})
}

func (h *Handler) createSlotSession(c *gin.Context) {
	session, err := h.slots.CreateSession(c.Request.Context(), userID(c))
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"game": models.GameMinedrop, "session": session.SessionUUID})
}

// playSlot answers with the provider's round payload plus the player's
// settled balance, which is what the slot client renders
func (h *Handler) playSlot(c *gin.Context) {
	var req slotPlayRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.slots.Play(c.Request.Context(), models.SlotPlayRequest{
		UserID:         userID(c),
		SessionID:      req.SessionID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Mode:           req.Mode,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		Error(c, err)
		return
	}

	c.JSON(http.StatusOK, lo.Assign(result.ProviderResult, map[string]any{
		"updated_balance": result.NewBalance,
	}))
}

type relayFunc func(ctx context.Context, userID int64, payload map[string]any) (map[string]any, error)

// relay forwards a wallet callback body to the provider and answers with the
// provider's body unchanged
func relay(call relayFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload := map[string]any{}
		if c.Request.ContentLength != 0 && !bindJSON(c, &payload) {
			return
		}

		resp, err := call(c.Request.Context(), userID(c), payload)
		if err != nil {
			Error(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
