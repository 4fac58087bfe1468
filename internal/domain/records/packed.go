package records

import (
	"encoding/json"
	"strings"
)

// legacyMetaMarker separa el texto clínico de la metadata JSON en las filas
// del esquema viejo, que guardaban todo en una sola columna de descripción.
const legacyMetaMarker = "[METADATA]"

// DecodeLegacyDescription divide una descripción empacada en body + metadata.
// ok=false significa que la descripción no trae marcador (o el JSON es
// inválido) y debe tratarse como body plano sin metadata.
func DecodeLegacyDescription(desc string) (body string, meta RecordMeta, ok bool) {
	idx := strings.LastIndex(desc, legacyMetaMarker)
	if idx < 0 {
		return desc, RecordMeta{}, false
	}
	raw := strings.TrimSpace(desc[idx+len(legacyMetaMarker):])
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return desc, RecordMeta{}, false
	}
	return strings.TrimRight(desc[:idx], "\n "), meta, true
}

// EncodeLegacyDescription arma el formato empacado, usado solo para exportar
// hacia consumidores que todavía leen el esquema viejo.
func EncodeLegacyDescription(body string, meta RecordMeta) (string, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return body + "\n" + legacyMetaMarker + string(raw), nil
}
