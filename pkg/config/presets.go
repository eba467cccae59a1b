package config

import "github.com/pg-sharding/fedrouter/pkg/models/record"

// Table layouts of the ministry deployment: historic data in PostgreSQL,
// current data in SQL Server.
const (
	PresetHistoricPostgres = "historic-postgres"
	PresetCurrentSQLServer = "current-sqlserver"
)

func creditColumns() []ColumnCfg {
	return []ColumnCfg{
		{Field: "id", Column: "id"},
		{Field: "gender", Column: "genero"},
		{Field: "age", Column: "edad"},
		{Field: "ethnicity", Column: "etnia"},
		{Field: "zone", Column: "zona"},
		{Field: "district", Column: "distrito_mies"},
		{Field: "province", Column: "provincia"},
		{Field: "canton", Column: "canton"},
		{Field: "parish", Column: "parroquia"},
		{Field: "zone_type", Column: "tipo_zona"},
		{Field: "credit_type", Column: "tipo_credito"},
		{Field: "activity_type", Column: "tipo_actividad"},
		{Field: "activity", Column: "actividad"},
		{Field: "cdh_number", Column: "numero_cdh"},
		{Field: "subsidy_type", Column: "tipo_subsidio"},
		{Field: "cdh_active", Column: "cdh_activos"},
		{Field: "year", Column: "anio"},
		{Field: "migrated_at", Column: "fecha_migracion"},
	}
}

var presets = map[string]map[string]*TableCfg{
	PresetHistoricPostgres: {
		record.SalesDataset: {
			Table: "ventas_historicas",
			Columns: []ColumnCfg{
				{Field: "sale_id", Column: "venta_id"},
				{Field: "sale_date", Column: "fecha_venta"},
				{Field: "amount", Column: "monto"},
			},
		},
		record.CreditsDataset: {
			Table:   "creditos_historicos",
			Columns: creditColumns(),
		},
	},
	PresetCurrentSQLServer: {
		record.SalesDataset: {
			Table: "VentasActuales",
			Columns: []ColumnCfg{
				{Field: "sale_id", Column: "VentaID"},
				{Field: "sale_date", Column: "FechaVenta"},
				{Field: "amount", Column: "Monto"},
			},
		},
		record.CreditsDataset: {
			Table:   "CreditosActuales",
			Columns: creditColumns(),
		},
	},
}

// PresetNames lists the built-in table layouts.
func PresetNames() []string {
	return []string{PresetHistoricPostgres, PresetCurrentSQLServer}
}
