package hal

// ATmega328P data-space addresses (memory mapped, I/O registers + 0x20).
const (
	PINB  Addr = 0x23
	DDRB  Addr = 0x24
	PORTB Addr = 0x25
	PINC  Addr = 0x26
	DDRC  Addr = 0x27
	PORTC Addr = 0x28
	PIND  Addr = 0x29
	DDRD  Addr = 0x2A
	PORTD Addr = 0x2B

	TIFR0 Addr = 0x35
	TIFR1 Addr = 0x36
	TIFR2 Addr = 0x37
	PCIFR Addr = 0x3B
	EIFR  Addr = 0x3C
	EIMSK Addr = 0x3D
	MCUSR Addr = 0x54

	TCCR0A Addr = 0x44
	TCCR0B Addr = 0x45
	TCNT0  Addr = 0x46
	OCR0A  Addr = 0x47
	OCR0B  Addr = 0x48

	SREG Addr = 0x5F

	WDTCSR Addr = 0x60

	PCICR  Addr = 0x68
	EICRA  Addr = 0x69
	PCMSK0 Addr = 0x6B
	PCMSK1 Addr = 0x6C
	PCMSK2 Addr = 0x6D
	TIMSK0 Addr = 0x6E
	TIMSK1 Addr = 0x6F
	TIMSK2 Addr = 0x70

	ADCL   Addr = 0x78
	ADCH   Addr = 0x79
	ADCSRA Addr = 0x7A
	ADCSRB Addr = 0x7B
	ADMUX  Addr = 0x7C
	DIDR0  Addr = 0x7E

	TCCR1A Addr = 0x80
	TCCR1B Addr = 0x81
	TCCR1C Addr = 0x82
	TCNT1L Addr = 0x84
	TCNT1H Addr = 0x85
	ICR1L  Addr = 0x86
	ICR1H  Addr = 0x87
	OCR1AL Addr = 0x88
	OCR1AH Addr = 0x89
	OCR1BL Addr = 0x8A
	OCR1BH Addr = 0x8B

	TCCR2A Addr = 0xB0
	TCCR2B Addr = 0xB1
	TCNT2  Addr = 0xB2
	OCR2A  Addr = 0xB3
	OCR2B  Addr = 0xB4

	UCSR0A Addr = 0xC0
	UCSR0B Addr = 0xC1
	UCSR0C Addr = 0xC2
	UBRR0L Addr = 0xC4
	UBRR0H Addr = 0xC5
	UDR0   Addr = 0xC6

	// DataSpaceSize covers the register file, I/O and extended I/O.
	DataSpaceSize = 0x100
)

// SREG bits.
const (
	SREG_I = 7
)

// Watchdog bits.
const (
	WDRF = 3 // MCUSR
	WDE  = 3 // WDTCSR
	WDCE = 4
)

// Timer/counter control bits. Timer0 and Timer2 share positions.
const (
	WGMx0  = 0 // TCCRxA
	WGMx1  = 1
	COMxA0 = 6
	COMxA1 = 7

	CSx0  = 0 // TCCRxB
	CSx1  = 1
	CSx2  = 2
	WGMx2 = 3 // WGM12 on TCCR1B
	WGM13 = 4 // TCCR1B only
	ICES1 = 6
	ICNC1 = 7

	TOIEx  = 0 // TIMSKx
	OCIExA = 1
	OCIExB = 2
	ICIE1  = 5

	TOVx  = 0 // TIFRx
	OCFxA = 1
	OCFxB = 2
	ICF1  = 5
)

// ADC bits.
const (
	MUX0  = 0 // ADMUX
	ADLAR = 5
	REFS0 = 6

	ADPS0 = 0 // ADCSRA
	ADIE  = 3
	ADIF  = 4
	ADATE = 5
	ADSC  = 6
	ADEN  = 7

	ADTS0 = 0 // ADCSRB
	ADTS1 = 1
	ADTS2 = 2
)

// USART0 bits.
const (
	U2X0  = 1 // UCSR0A
	UDRE0 = 5
	TXC0  = 6
	RXC0  = 7

	TXEN0  = 3 // UCSR0B
	RXEN0  = 4
	RXCIE0 = 7

	UCSZ00 = 1 // UCSR0C
	UCSZ01 = 2
	USBS0  = 3
)

// External interrupt bits.
const (
	ISC00 = 0 // EICRA
	ISC10 = 2

	INT0 = 0 // EIMSK / EIFR
	INT1 = 1

	PCIE0 = 0 // PCICR / PCIFR
	PCIE1 = 1
	PCIE2 = 2
)
