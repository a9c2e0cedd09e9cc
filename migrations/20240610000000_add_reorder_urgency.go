package migrations

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(upAddReorderUrgency, downAddReorderUrgency)
}

// 为采购申请表补充紧急程度列，并为闲置巡检加速建立最后使用时间索引
func upAddReorderUrgency(tx *sql.Tx) error {
	// 1. 添加 urgency 列，存量数据回填为 MEDIUM
	_, err := tx.Exec(`
		ALTER TABLE reorder_request
		ADD COLUMN urgency VARCHAR(16) NOT NULL DEFAULT 'MEDIUM'
		COMMENT '紧急程度' AFTER quantity;
	`)
	if err != nil {
		return err
	}

	// 2. 闲置巡检按最后使用时间过滤，加索引避免全表扫描
	_, err = tx.Exec(`
		CREATE INDEX idx_equipment_status_last_used_at
		ON equipment_status (last_used_at);
	`)
	return err
}

// 回滚更改
func downAddReorderUrgency(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DROP INDEX idx_equipment_status_last_used_at ON equipment_status;
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		ALTER TABLE reorder_request
		DROP COLUMN urgency;
	`)
	return err
}
