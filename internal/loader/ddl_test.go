package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDDL(t *testing.T) {
	c, err := LoadCatalog("testdata/catalog.yaml")
	require.NoError(t, err)
	users, _ := c.Lookup("Users")
	trips, _ := c.Lookup("Trips")

	assert.Equal(t, `DROP TABLE IF EXISTS "public"."Users" CASCADE;`, DropTableSQL(c.Schema, users))

	assert.Equal(t, `CREATE TABLE "public"."Users" (
	"Users_Id" INT,
	"Banned" VARCHAR,
	"Role" VARCHAR,
	PRIMARY KEY ("Users_Id")
);`, CreateTableSQL(c.Schema, users))

	create := CreateTableSQL(c.Schema, trips)
	assert.Contains(t, create, `CONSTRAINT "fk_trips_client_id" FOREIGN KEY ("Client_Id") REFERENCES "public"."Users" ("Users_Id") ON DELETE SET NULL`)
	assert.Contains(t, create, `CONSTRAINT "fk_driver" FOREIGN KEY ("Driver_Id")`)

	assert.Equal(t,
		`COPY "public"."Users" ("Users_Id", "Banned", "Role") FROM STDIN WITH (FORMAT csv, DELIMITER ',')`,
		CopySQL(c.Schema, users, ','))
	assert.Contains(t, CopySQL(c.Schema, users, '\''), `DELIMITER ''''`)
}

func TestCreateTableSQL_NoPrimaryKey(t *testing.T) {
	table := &Table{Name: "events", Source: "events.csv", Columns: []Column{{Name: "at", Type: "TIMESTAMP WITH TIME ZONE"}}}

	assert.Equal(t, "CREATE TABLE \"public\".\"events\" (\n\t\"at\" TIMESTAMP WITH TIME ZONE\n);", CreateTableSQL("public", table))
}
