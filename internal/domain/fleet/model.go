// Package fleet manages branches (filiais), yards (pátios) and the vehicles
// (motos) parked in them through the backend REST API.
package fleet

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is a backend identifier. The backend sends either a JSON string or a
// number; both decode to the same ID.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// VehicleStatus is the operational state of a vehicle.
type VehicleStatus string

const (
	StatusFree        VehicleStatus = "LIVRE"
	StatusProblem     VehicleStatus = "PROBLEMA"
	StatusMaintenance VehicleStatus = "MANUTENCAO"
)

// Statuses lists every vehicle status in display order.
var Statuses = []VehicleStatus{StatusFree, StatusProblem, StatusMaintenance}

// Sector is a parking area of a yard.
type Sector string

const (
	SectorA Sector = "A"
	SectorB Sector = "B"
	SectorC Sector = "C"
	SectorD Sector = "D"
)

// Sectors lists every yard sector in map order.
var Sectors = []Sector{SectorA, SectorB, SectorC, SectorD}

// Branch is a company branch (filial).
type Branch struct {
	ID          ID     `json:"idFilial"`
	Name        string `json:"nome"`
	CNPJ        string `json:"cnpj"`
	CountryCode string `json:"cdPais"`
	OpenedOn    string `json:"dataAbertura"`
}

// BranchForm holds the user-editable fields of a branch.
type BranchForm struct {
	Name        string `json:"nome" validate:"required,max=100"`
	CNPJ        string `json:"cnpj" validate:"required,max=18"`
	CountryCode string `json:"cdPais" validate:"max=3"`
}

// Yard is a parking yard (pátio) belonging to a branch.
type Yard struct {
	ID          ID     `json:"idPatio"`
	Name        string `json:"nome"`
	Description string `json:"descricao"`
	Open        string `json:"flagAberto"`
	CreatedAt   string `json:"timestampCreated"`
	UpdatedAt   string `json:"timestampUpdated"`
	BranchID    ID     `json:"idFilial"`
}

// YardForm holds the user-editable fields of a yard.
type YardForm struct {
	Name        string `json:"nome" validate:"required,max=100"`
	Description string `json:"descricao" validate:"required,max=255"`
	BranchID    ID     `json:"idFilial" validate:"required"`
}

// Vehicle is a motorcycle (moto).
type Vehicle struct {
	ID         ID            `json:"idMoto"`
	Plate      string        `json:"placa"`
	Status     VehicleStatus `json:"status"`
	Sector     Sector        `json:"setor"`
	Model      string        `json:"modelo"`
	Chassis    string        `json:"chassi"`
	YardID     *ID           `json:"idPatio"`
	OperatorID *ID           `json:"idOperador"`
}

// VehicleForm holds the user-editable fields of a vehicle.
type VehicleForm struct {
	Plate   string        `json:"placa" validate:"required,max=10"`
	Model   string        `json:"modelo" validate:"required"`
	Chassis string        `json:"chassi" validate:"required,max=17"`
	Status  VehicleStatus `json:"status" validate:"required,oneof=LIVRE PROBLEMA MANUTENCAO"`
	Sector  Sector        `json:"setor" validate:"required,oneof=A B C D"`
	YardID  ID            `json:"idPatio" validate:"required"`
}

// Form returns the editable fields of v.
func (v Vehicle) Form() VehicleForm {
	f := VehicleForm{
		Plate:   v.Plate,
		Model:   v.Model,
		Chassis: v.Chassis,
		Status:  v.Status,
		Sector:  v.Sector,
	}
	if v.YardID != nil {
		f.YardID = *v.YardID
	}
	return f
}
