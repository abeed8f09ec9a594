package model

import "time"

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type PageQuery struct {
	Page int `query:"page"`
	Size int `query:"size"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// Normalize applies defaults; pages are 1-based.
func (p PageQuery) Normalize() PageQuery {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func (p PageQuery) Offset() int {
	return (p.Page - 1) * p.Size
}

type Title struct {
	ID              int64     `json:"id" db:"id"`
	ISBN            *string   `json:"isbn,omitempty" db:"isbn"`
	Title           string    `json:"title" db:"title"`
	Author          *string   `json:"author,omitempty" db:"author"`
	TotalCopies     int       `json:"totalCopies" db:"total_copies"`
	AvailableCopies int       `json:"availableCopies" db:"available_copies"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// Borrowed is the number of copies currently out on open loans.
func (t Title) Borrowed() int {
	return t.TotalCopies - t.AvailableCopies
}

type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

func (s MemberStatus) Valid() bool {
	return s == MemberActive || s == MemberInactive
}

type Member struct {
	ID         int64        `json:"id" db:"id"`
	MemberCode string       `json:"memberCode" db:"member_code"`
	Name       string       `json:"name" db:"name"`
	Status     MemberStatus `json:"status" db:"status"`
	CreatedAt  time.Time    `json:"createdAt" db:"created_at"`
}

type LoanStatus string

const (
	LoanOpen   LoanStatus = "open"
	LoanClosed LoanStatus = "closed"
	// LoanOverdue is never stored; it is derived from an open loan's due date.
	LoanOverdue LoanStatus = "overdue"
)

type Loan struct {
	ID         int64      `json:"id" db:"id"`
	TitleID    int64      `json:"titleId" db:"title_id"`
	MemberID   int64      `json:"memberId" db:"member_id"`
	Quantity   int        `json:"quantity" db:"quantity"`
	LoanDate   time.Time  `json:"loanDate" db:"loan_date"`
	DueDate    time.Time  `json:"dueDate" db:"due_date"`
	ReturnDate *time.Time `json:"returnDate,omitempty" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
	Fine       int64      `json:"fine" db:"fine"`
	Notes      *string    `json:"notes,omitempty" db:"notes"`
}

func (l Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanOpen && l.DueDate.Before(now)
}

// DisplayStatus reports overdue for open loans past their due date.
func (l Loan) DisplayStatus(now time.Time) LoanStatus {
	if l.IsOverdue(now) {
		return LoanOverdue
	}
	return l.Status
}

type LoanView struct {
	Loan          `json:",inline"`
	TitleName     string     `json:"titleName" db:"title_name"`
	TitleISBN     *string    `json:"titleIsbn,omitempty" db:"title_isbn"`
	MemberName    string     `json:"memberName" db:"member_name"`
	MemberCode    string     `json:"memberCode" db:"member_code"`
	ComputedState LoanStatus `json:"computedStatus" db:"-"`
	// AccruedFine is the frozen fine of a closed loan or the fine owed if returned now.
	AccruedFine int64 `json:"computedFine" db:"-"`
}

type LoanFilter struct {
	PageQuery
	Status   LoanStatus `query:"status" validate:"omitempty,oneof=open closed overdue"`
	MemberID int64      `query:"memberId"`
	TitleID  int64      `query:"titleId"`
}

type ListLoans struct {
	Paging `json:",inline"`
	Items  []LoanView `json:"items"`
}

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationFulfilled ReservationStatus = "fulfilled"
	ReservationCancelled ReservationStatus = "cancelled"
)

type Reservation struct {
	ID         int64             `json:"id" db:"id"`
	TitleID    int64             `json:"titleId" db:"title_id"`
	MemberID   int64             `json:"memberId" db:"member_id"`
	ReservedAt time.Time         `json:"reservedAt" db:"reserved_at"`
	ExpiresAt  time.Time         `json:"expiresAt" db:"expires_at"`
	Status     ReservationStatus `json:"status" db:"status"`
}

// Lapsed reports an active reservation whose expiry has passed.
func (r Reservation) Lapsed(now time.Time) bool {
	return r.Status == ReservationActive && now.After(r.ExpiresAt)
}

type ReservationView struct {
	Reservation `json:",inline"`
	TitleName   string `json:"titleName" db:"title_name"`
	MemberName  string `json:"memberName" db:"member_name"`
	MemberCode  string `json:"memberCode" db:"member_code"`
	Expired     bool   `json:"expired" db:"-"`
}

type ReservationFilter struct {
	PageQuery
	Status   ReservationStatus `query:"status" validate:"omitempty,oneof=active fulfilled cancelled"`
	MemberID int64             `query:"memberId"`
	TitleID  int64             `query:"titleId"`
}

type ListReservations struct {
	Paging `json:",inline"`
	Items  []ReservationView `json:"items"`
}

type AuditAction string

const (
	ActionCreate     AuditAction = "CREATE"
	ActionUpdate     AuditAction = "UPDATE"
	ActionDelete     AuditAction = "DELETE"
	ActionReturn     AuditAction = "RETURN"
	ActionBulkDelete AuditAction = "BULK_DELETE"
	ActionBulkReturn AuditAction = "BULK_RETURN"
)

type EntityType string

const (
	EntityTitle       EntityType = "title"
	EntityMember      EntityType = "member"
	EntityLoan        EntityType = "loan"
	EntityReservation EntityType = "reservation"
)

type AuditEntry struct {
	ID         int64       `json:"id" db:"id"`
	Action     AuditAction `json:"action" db:"action"`
	EntityType EntityType  `json:"entityType" db:"entity_type"`
	EntityID   string      `json:"entityId" db:"entity_id"`
	EntityName string      `json:"entityName" db:"entity_name"`
	Details    *string     `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time   `json:"createdAt" db:"created_at"`
}

type AuditFilter struct {
	PageQuery
	EntityType EntityType  `query:"entityType"`
	Action     AuditAction `query:"action"`
	Search     string      `query:"search"`
}

type ListAudit struct {
	Paging `json:",inline"`
	Items  []AuditEntry `json:"items"`
}

type BulkAction string

const (
	BulkDeleteTitles  BulkAction = "delete_titles"
	BulkDeleteMembers BulkAction = "delete_members"
	BulkReturnLoans   BulkAction = "return_loans"
)

type BulkRequest struct {
	Action BulkAction `json:"action" validate:"required,oneof=delete_titles delete_members return_loans"`
	IDs    []int64    `json:"ids" validate:"required,min=1"`
}

type BulkResult struct {
	BatchID    string  `json:"batchId"`
	Affected   int     `json:"affected"`
	SkippedIDs []int64 `json:"skippedIds"`
}

type BorrowRequest struct {
	TitleID  int64   `json:"titleId" validate:"required"`
	MemberID int64   `json:"memberId" validate:"required"`
	Quantity int     `json:"quantity" validate:"gte=0"`
	LoanDays int     `json:"loanDays" validate:"gte=0"`
	Notes    *string `json:"notes"`
}

type ReturnRequest struct {
	// ReturnQuantity of 0 returns the full loan quantity.
	ReturnQuantity int     `json:"returnQuantity" validate:"gte=0"`
	Notes          *string `json:"notes"`
}

type ReturnResult struct {
	Loan             Loan  `json:"loan"`
	ReturnedQuantity int   `json:"returnedQuantity"`
	Fine             int64 `json:"fine"`
}

type ScanBorrowRequest struct {
	ISBN       string `json:"isbn" validate:"required"`
	MemberCode string `json:"memberCode" validate:"required"`
}

type ScanReturnRequest struct {
	ISBN       string `json:"isbn" validate:"required"`
	MemberCode string `json:"memberCode"`
}

type ReserveRequest struct {
	TitleID  int64 `json:"titleId" validate:"required"`
	MemberID int64 `json:"memberId" validate:"required"`
}

type ReservationStatusRequest struct {
	Status ReservationStatus `json:"status" validate:"required,oneof=fulfilled cancelled"`
}

type CreateTitleRequest struct {
	ISBN        *string `json:"isbn"`
	Title       string  `json:"title" validate:"required"`
	Author      *string `json:"author"`
	TotalCopies int     `json:"totalCopies" validate:"gte=0"`
}

type ResizeTitleRequest struct {
	TotalCopies int `json:"totalCopies" validate:"required,gte=1"`
}

type CreateMemberRequest struct {
	MemberCode string       `json:"memberCode" validate:"required"`
	Name       string       `json:"name" validate:"required"`
	Status     MemberStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

type MemberStatusRequest struct {
	Status MemberStatus `json:"status" validate:"required,oneof=active inactive"`
}

type InventoryTotals struct {
	Titles          int `db:"titles"`
	TotalCopies     int `db:"total_copies"`
	AvailableCopies int `db:"available_copies"`
}

type LoanTotals struct {
	Open           int   `db:"open_loans"`
	Overdue        int   `db:"overdue_loans"`
	FinesCollected int64 `db:"fines_collected"`
}

type Stats struct {
	Titles             int   `json:"titles"`
	TotalCopies        int   `json:"totalCopies"`
	AvailableCopies    int   `json:"availableCopies"`
	BorrowedCopies     int   `json:"borrowedCopies"`
	ActiveMembers      int   `json:"activeMembers"`
	OpenLoans          int   `json:"openLoans"`
	OverdueLoans       int   `json:"overdueLoans"`
	FinesCollected     int64 `json:"finesCollected"`
	ActiveReservations int   `json:"activeReservations"`
}
