package book

import (
	"fmt"
	"math"
)

// SlotSide 区分价格档位表服务于开仓侧还是平仓侧
type SlotSide string

const (
	SideOpen  SlotSide = "open"
	SideClose SlotSide = "close"
)

// Direction 订单方向 做多long | 做空short
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// PriceSlotIndex 将有界价格区间线性映射到 [0, slotCount] 的离散档位。
//
// 做多开仓按价格降序排列（档位0在最高价），做多平仓按价格升序排列
// （档位0在最低价）。构造时将靠近盘口的内侧边界外扩一个档位宽度，
// 保证边界价格本身落在有效档位内而不是正好压在边缘上。
type PriceSlotIndex struct {
	maxPrice float64 // 外扩后的上边界
	minPrice float64 // 外扩后的下边界
	slots    int     // 档位总数 = slotCount + 1
	side     SlotSide
	dir      Direction
}

// NewPriceSlotIndex 构造价格档位表。maxPrice/minPrice是外扩前的原始边界。
func NewPriceSlotIndex(maxPrice, minPrice float64, slotCount int, side SlotSide, dir Direction) (*PriceSlotIndex, error) {
	if maxPrice <= minPrice {
		return nil, fmt.Errorf("%w: max %v must be greater than min %v", ErrInvalidPriceRange, maxPrice, minPrice)
	}
	if minPrice < 0 {
		return nil, fmt.Errorf("%w: min %v must not be negative", ErrInvalidPriceRange, minPrice)
	}
	if slotCount <= 0 {
		return nil, fmt.Errorf("%w: slot count %d must be positive", ErrInvalidPriceRange, slotCount)
	}
	if side != SideOpen && side != SideClose {
		return nil, fmt.Errorf("side must be %q or %q, not %q", SideOpen, SideClose, side)
	}
	if dir != Long && dir != Short {
		return nil, fmt.Errorf("direction must be %q or %q, not %q", Long, Short, dir)
	}

	// 外扩内侧边界一个档位宽度
	step := (maxPrice - minPrice) / float64(slotCount)
	switch {
	case side == SideOpen && dir == Long:
		minPrice -= step
	case side == SideOpen && dir == Short:
		maxPrice += step
	case side == SideClose && dir == Long:
		maxPrice += step
	case side == SideClose && dir == Short:
		minPrice -= step
	}

	return &PriceSlotIndex{
		maxPrice: maxPrice,
		minPrice: minPrice,
		slots:    slotCount + 1,
		side:     side,
		dir:      dir,
	}, nil
}

// Slots 返回档位总数（slotCount + 1）
func (x *PriceSlotIndex) Slots() int { return x.slots }

// PriceToSlot 将价格映射到最近的档位。
// 返回的档位可能越界，调用方需用CheckSlot判断。
func (x *PriceSlotIndex) PriceToSlot(price float64) (int, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrPriceNotPositive, price)
	}
	span := x.maxPrice - x.minPrice
	var slot float64
	if x.ascending() {
		slot = (price - x.minPrice) * float64(x.slots) / span
	} else {
		slot = (x.maxPrice - price) * float64(x.slots) / span
	}
	// 四舍六入五成双 与历史数据口径保持一致
	return int(math.RoundToEven(slot)), nil
}

// SlotToPrice 返回档位对应的标准价格，是PriceToSlot的精确仿射逆映射。
// 越界档位被钳制到有效区间内，边界档位的浮点漂移不会导致panic。
func (x *PriceSlotIndex) SlotToPrice(slot int) float64 {
	if slot < 0 {
		slot = 0
	}
	if slot >= x.slots {
		slot = x.slots - 1
	}
	span := x.maxPrice - x.minPrice
	if x.ascending() {
		return x.minPrice + span*float64(slot)/float64(x.slots)
	}
	return x.maxPrice - span*float64(slot)/float64(x.slots)
}

// CheckSlot 判断档位是否在有效区间 [0, slots-1] 内
func (x *PriceSlotIndex) CheckSlot(slot int) bool {
	return slot >= 0 && slot < x.slots
}

// ascending 档位是否按价格升序排列
func (x *PriceSlotIndex) ascending() bool {
	if x.side == SideOpen {
		// 做多开仓 买入 按价格降序排列
		return x.dir == Short
	}
	// 做多平仓 卖出 按价格升序排列
	return x.dir == Long
}
