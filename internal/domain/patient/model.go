package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. Demographics management is handled by
// the front-desk system; this service only needs lookup and registration.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RegNumber string    `db:"reg_number" json:"reg_number"`
	Name      string    `db:"name" json:"name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
