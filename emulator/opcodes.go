package emulator

// execOpcode applies op. The program counter has already been advanced past
// op. Every check that can fail happens before any state is changed, so an
// error leaves the machine as it was before the instruction.
func (c *Chip8) execOpcode(op uint16) error {
	h := op & 0xF000
	nnn := op & 0x0FFF
	nn := uint8(nnn & 0xff)
	x := uint8((nnn >> 8) & 0xf)
	y := uint8((nnn >> 4) & 0xf)
	n := nn & 0x0f

	v := &c.regs.V

	switch h {
	case 0x0000:
		switch {
		case op&0xFFF0 == 0x00C0: // 00CN scroll down N lines
			c.disp.Scroll(c.scrollRows(n))

		case op&0xFFF0 == 0x00B0: // 00BN scroll up N lines
			c.disp.Scroll(-c.scrollRows(n))

		case op == 0x00E0: // clear display
			c.disp.Clear()

		case op == 0x00EE: // return from subroutine
			r, err := c.stack.Pop()
			if err != nil {
				return err
			}
			c.pc = r

		case op == 0x00FB: // scroll right 4 pixels
			c.disp.ScrollHorizontal(c.scrollRows(4))

		case op == 0x00FC: // scroll left 4 pixels
			c.disp.ScrollHorizontal(-c.scrollRows(4))

		case op == 0x00FD: // exit interpreter
			c.pc -= 2
			c.halted = true

		case op == 0x00FE: // low-res mode
			c.disp.SetHighRes(false)

		case op == 0x00FF: // high-res mode
			c.disp.SetHighRes(true)

		default: // 0NNN machine code routines are not emulated
			return ErrIllegalInstruction
		}

	case 0x1000: // goto 0x0NNN
		c.pc = nnn

	case 0x2000: // call 0x0NNN
		if err := c.stack.Push(c.pc); err != nil {
			return err
		}
		c.pc = nnn

	case 0x3000: // 0x3XNN if(Vx==NN)
		if v[x] == nn {
			c.pc += 2
		}

	case 0x4000: // 0x4XNN if(Vx!=NN)
		if v[x] != nn {
			c.pc += 2
		}

	case 0x5000: // 0x5XY0 if(Vx==Vy)
		if n != 0 {
			return ErrIllegalInstruction
		}
		if v[x] == v[y] {
			c.pc += 2
		}

	case 0x6000: // 6XNN Vx = NN
		v[x] = nn

	case 0x7000: // 7XNN Vx += NN (Carry flag is not changed)
		v[x] += nn

	case 0x8000:
		switch n {
		case 0: // 8XY0	Vx=Vy
			v[x] = v[y]

		case 1: // 8XY1	Vx=Vx|Vy
			v[x] |= v[y]

		case 2: // 8XY2	Vx=Vx&Vy
			v[x] &= v[y]

		case 3: // 8XY3	Vx=Vx^Vy
			v[x] ^= v[y]

		case 4: // 8XY4	Vx += Vy
			carried := (uint16(v[x]) + uint16(v[y])) > 0xff
			v[x] += v[y]
			c.regs.updateCarryFlag(carried)

		case 5: // 8XY5	Vx -= Vy
			borrowed := v[x] < v[y]
			v[x] -= v[y]
			c.regs.updateCarryFlag(!borrowed)

		case 6: // 8XY6	Vx>>=1
			shifted := v[x]&0x01 == 1
			v[x] >>= 1
			c.regs.updateCarryFlag(shifted)

		case 7: // 8XY7	Vx=Vy-Vx
			borrowed := v[y] < v[x]
			v[x] = v[y] - v[x]
			c.regs.updateCarryFlag(!borrowed)

		case 0xE: // 8XYE Vx<<=1
			shifted := v[x]>>7 == 1
			v[x] <<= 1
			c.regs.updateCarryFlag(shifted)

		default:
			return ErrIllegalInstruction
		}

	case 0x9000: // 9XY0 if(Vx!=Vy)
		if n != 0 {
			return ErrIllegalInstruction
		}
		if v[x] != v[y] {
			c.pc += 2
		}

	case 0xA000: // ANNN I = NNN
		c.regs.I = nnn

	case 0xB000: // BNNN PC=V0+NNN
		c.pc = uint16(v[0]) + nnn

	case 0xC000: // CXNN Vx=rand()&NN
		v[x] = uint8(c.rand.Intn(256)) & nn

	case 0xD000: // DXYN draw(Vx,Vy,N)
		var flipped bool
		if n == 0 {
			flipped = c.drawExtended(v[x], v[y])
		} else {
			flipped = c.draw(v[x], v[y], n)
		}
		c.regs.updateCarryFlag(flipped)

	case 0xE000:
		switch nn {
		case 0x9E: // EX9E if(key()==Vx)
			if v[x] >= KeyCount {
				return ErrInvalidOperand
			}
			if c.keys.Pressed(v[x]) {
				c.pc += 2
			}

		case 0xA1: // EXA1 if(key()!=Vx)
			if v[x] >= KeyCount {
				return ErrInvalidOperand
			}
			if !c.keys.Pressed(v[x]) {
				c.pc += 2
			}

		default:
			return ErrIllegalInstruction
		}

	case 0xF000:
		switch nn {
		case 0x07: // FX07 Vx = get_delay()
			v[x] = Countdown(c.regs.DT, c.now())

		case 0x0A: // FX0A Vx = get_key()
			// pc decrement for blocking; only a key pressed from now on counts
			c.pc -= 2
			c.waiting = true
			c.waitReg = x
			c.keys.clearPress()

		case 0x15: // FX15 delay_timer(Vx)
			c.regs.DT = Deadline(c.now(), v[x])

		case 0x18: // FX18 sound_timer(Vx)
			c.regs.ST = Deadline(c.now(), v[x])

		case 0x1E: // FX1E I +=Vx
			c.regs.I += uint16(v[x])
			c.regs.updateCarryFlag(c.regs.I > MaxAddress)

		case 0x29: // FX29 I=sprite_addr[Vx]
			c.regs.I = CharacterSpritesOffset + uint16(v[x]&0xf)*CharacterSpriteBytes

		case 0x30: // FX30 I=hires_sprite_addr[Vx]
			c.regs.I = HighCharacterSpritesOffset + uint16(v[x]&0xf)*HighCharacterSpriteBytes

		case 0x33: // FX33 set_BCD(Vx);
			c.mem.Write(c.regs.I+0, v[x]/100)
			c.mem.Write(c.regs.I+1, (v[x]%100)/10)
			c.mem.Write(c.regs.I+2, v[x]%10)

		case 0x55: // FX55 reg_dump(Vx,&I)
			for i := uint8(0); i <= x; i++ {
				c.mem.Write(c.regs.I+uint16(i), v[i])
			}

		case 0x65: // FX65 reg_load(Vx,&I)
			for i := uint8(0); i <= x; i++ {
				v[i] = c.mem.Read(c.regs.I + uint16(i))
			}

		case 0x75: // FX75 save_flags(Vx)
			return c.regs.SaveFlags(x)

		case 0x85: // FX85 load_flags(Vx)
			return c.regs.RestoreFlags(x)

		default:
			return ErrIllegalInstruction
		}
	}

	return nil
}
