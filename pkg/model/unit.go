package model

import "github.com/uptrace/bun"

// Unit is a rentable listing as exposed by the catalog. Read-only here.
type Unit struct {
	bun.BaseModel `bun:"table:units,alias:u"`

	ID           int64  `bun:"id,pk,autoincrement" json:"id"`
	UID          string `bun:"uid,notnull,unique" json:"uid"`
	Name         string `bun:"name,notnull" json:"name"`
	BasePrice    int64  `bun:"base_price,notnull" json:"base_price"`
	Currency     string `bun:"currency,notnull" json:"currency"`
	ProvinceCode string `bun:"province_code" json:"province_code,omitempty"`
	DistrictCode string `bun:"district_code" json:"district_code,omitempty"`
}
