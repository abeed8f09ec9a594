package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/smabibs/SiPerpus/circulation/internal/model"
)

func (h *Handler) Borrow(c echo.Context) error {
	var req model.BorrowRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	loan, err := h.circulation.Borrow(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) ReturnLoan(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req model.ReturnRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.circulation.ReturnLoan(c.Request().Context(), id, req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ScanBorrow(c echo.Context) error {
	var req model.ScanBorrowRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	loan, err := h.circulation.BorrowByCode(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) ScanReturn(c echo.Context) error {
	var req model.ScanReturnRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.circulation.ReturnByCode(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListLoans(c echo.Context) error {
	var filter model.LoanFilter
	if err := bind(c, &filter); err != nil {
		return err
	}
	loans, err := h.circulation.ListLoans(c.Request().Context(), filter)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) Reserve(c echo.Context) error {
	var req model.ReserveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.circulation.Reserve(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ChangeReservationStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req model.ReservationStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.circulation.ChangeReservationStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) CancelReservation(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	res, err := h.circulation.CancelReservation(c.Request().Context(), id)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListReservations(c echo.Context) error {
	var filter model.ReservationFilter
	if err := bind(c, &filter); err != nil {
		return err
	}
	list, err := h.circulation.ListReservations(c.Request().Context(), filter)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) Bulk(c echo.Context) error {
	var req model.BulkRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.circulation.Bulk(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListAudit(c echo.Context) error {
	var filter model.AuditFilter
	if err := bind(c, &filter); err != nil {
		return err
	}
	list, err := h.circulation.ListAudit(c.Request().Context(), filter)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.circulation.Stats(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
