package collection

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/lib/pq"
	"github.com/nci/gomemcache/memcache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PostgresCollection queries a catalog database with the images / bands /
// gdalrefs schema. Query results for FindRangeST are optionally cached in
// memcache, keyed by a hash of the query; the catalog is treated as
// immutable for the lifetime of the cache.
type PostgresCollection struct {
	db  *sql.DB
	mc  *memcache.Client
	uri string
}

func OpenPostgres(uri string, memcacheAddr string) (*PostgresCollection, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open image collection database: %v", err)
	}

	var mc *memcache.Client
	if len(memcacheAddr) > 0 {
		mc = memcache.New(memcacheAddr)
	}

	return &PostgresCollection{db: db, mc: mc, uri: uri}, nil
}

func (c *PostgresCollection) GetBands() ([]BandsRow, error) {
	rows, err := c.db.Query(
		`select name,
			coalesce(type, ''),
			coalesce("offset", 0),
			coalesce(scale, 1),
			coalesce(unit, ''),
			coalesce(nodata, '')
		from bands order by id`)
	if err != nil {
		return nil, fmt.Errorf("band query failed: %v", err)
	}
	defer rows.Close()

	var out []BandsRow
	for rows.Next() {
		var b BandsRow
		if err := rows.Scan(&b.Name, &b.Type, &b.Offset, &b.Scale, &b.Unit, &b.Nodata); err != nil {
			return nil, fmt.Errorf("band row scan failed: %v", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const findRangeSTQuery = `select gdalrefs.descriptor,
		images.datetime,
		bands.name,
		gdalrefs.band_num
	from gdalrefs
	join images on images.id = gdalrefs.image_id
	join bands on bands.id = gdalrefs.band_id
	where images.right >= $1 and images.left <= $2
		and images.top >= $3 and images.bottom <= $4
		and images.datetime >= $5::timestamp and images.datetime <= $6::timestamp
	order by gdalrefs.descriptor, gdalrefs.band_num`

func (c *PostgresCollection) FindRangeST(q STQuery) ([]FindRangeSTRow, error) {
	var hash string
	if c.mc != nil {
		buff := md5.Sum([]byte(fmt.Sprintf("%s|%v", findRangeSTQuery, q)))
		hash = hex.EncodeToString(buff[:])
		if cached, err := c.mc.Get(hash); err == nil {
			var out []FindRangeSTRow
			if err := json.Unmarshal(cached.Value, &out); err == nil {
				return out, nil
			}
		}
	}

	rows, err := c.db.Query(findRangeSTQuery, q.Left, q.Right, q.Bottom, q.Top, q.T0, q.T1)
	if err != nil {
		return nil, fmt.Errorf("image query failed: %v", err)
	}
	defer rows.Close()

	var out []FindRangeSTRow
	for rows.Next() {
		var r FindRangeSTRow
		if err := rows.Scan(&r.Descriptor, &r.Datetime, &r.BandName, &r.BandNum); err != nil {
			return nil, fmt.Errorf("image row scan failed: %v", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if c.mc != nil {
		if payload, err := json.Marshal(out); err == nil {
			// cache errors don't matter; memcache may not retain this anyway
			c.mc.Set(&memcache.Item{Key: hash, Value: payload})
		}
	}
	return out, nil
}

func (c *PostgresCollection) IsTemporary() bool {
	return false
}

func (c *PostgresCollection) Filename() string {
	return c.uri
}

func (c *PostgresCollection) Close() error {
	return c.db.Close()
}
